package goSession

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/internal/authtest"
)

func newTestServer(t *testing.T, opts authtest.Options) *authtest.Server {
	t.Helper()
	srv := authtest.NewServer(opts)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Retry.Backoff = time.Millisecond
	cfg.Metrics.Enabled = true
	return cfg
}

// newTestClient builds a client against srv. Options run after the test
// config is applied.
func newTestClient(t *testing.T, srv *authtest.Server, opts ...func(*Builder)) *Client {
	t.Helper()

	transport := &http.Transport{}
	b := New().WithConfig(testConfig(srv.URL)).WithHTTPTransport(transport)
	for _, opt := range opts {
		opt(b)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		transport.CloseIdleConnections()
	})
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u
}
