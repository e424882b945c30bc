package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/session"
	"github.com/go-logr/logr"
	"github.com/sethvargo/go-retry"
)

const maxResponseBody = 1 << 20

// Client is the authenticated session manager for one dashboard session.
//
// It owns the published session state, the verdict cache, the refresh
// coordinator and the request pipeline. All methods are safe for concurrent
// use.
type Client struct {
	config    Config
	baseURL   *url.URL
	http      *http.Client
	transport *Transport
	creds     CredentialProvider
	cache     session.Cache
	state     *session.StateCell
	roles     *permission.Registry
	coord     *refresh.Coordinator
	metrics   *Metrics
	audit     *auditDispatcher
	log       logr.Logger
	onExpired func()

	bgMu   sync.Mutex
	bg     sync.WaitGroup
	closed bool
}

// State returns the current session state.
func (c *Client) State() State {
	return c.state.Load()
}

// Subscribe returns a channel that first carries the current state and then
// every later publication. A subscriber that falls behind receives only the
// latest state. Call cancel to unsubscribe.
func (c *Client) Subscribe() (<-chan State, func()) {
	return c.state.Subscribe()
}

// HTTPClient returns the client feature code uses for API calls. Requests
// made with it carry session credentials and are refreshed on 401.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Credentials returns the cookie store backing the session.
func (c *Client) Credentials() CredentialProvider {
	return c.creds
}

// URL resolves path against the configured base URL.
func (c *Client) URL(path string) string {
	return c.baseURL.String() + path
}

// RefreshStats returns the refresh coordinator counters.
func (c *Client) RefreshStats() refresh.Stats {
	return c.coord.Stats()
}

// MetricsSnapshot returns the client counters, including refresh coordination.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	s := c.metrics.Snapshot()
	if c.metrics.Enabled() {
		stats := c.coord.Stats()
		s.Counters[MetricRefreshStarted] = stats.Started
		s.Counters[MetricRefreshCoalesced] = stats.Coalesced
	}
	return s
}

// Metrics returns the live counters, for components that record into them.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close waits for background logouts and flushes the audit dispatcher.
func (c *Client) Close() {
	c.bgMu.Lock()
	c.closed = true
	c.bgMu.Unlock()

	c.bg.Wait()
	c.audit.Close()
}

// goBackground runs fn unless the client is closed.
func (c *Client) goBackground(fn func()) bool {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()
	if c.closed {
		return false
	}
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		fn()
	}()
	return true
}

func (c *Client) emit(ctx context.Context, eventType string, user *UserProfile, err error) {
	if c.audit == nil {
		return
	}
	ev := AuditEvent{EventType: eventType, Success: err == nil}
	if user != nil {
		ev.UserID = user.ID
		ev.Username = user.Username
		ev.RoleName = user.RoleName
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.audit.Emit(ctx, ev)
}

// callResult is the outcome of an auth call that reached the server.
type callResult struct {
	status int
	body   []byte
}

func (r callResult) ok() bool {
	return r.status >= 200 && r.status < 300
}

// call performs an auth endpoint request with the configured timeout and
// retry policy. Transport errors and 5xx responses are retried; a non-nil
// error means no response was received.
func (c *Client) call(ctx context.Context, timeout time.Duration, method, path string, in any) (callResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return callResult{}, fmt.Errorf("encode %s body: %w", path, err)
		}
	}

	backoff := retry.WithMaxRetries(c.config.Retry.MaxRetries, retry.NewConstant(max(c.config.Retry.Backoff, time.Millisecond)))

	var res callResult
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res = callResult{}

		var body io.Reader = http.NoBody
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return retry.RetryableError(err)
		}
		res = callResult{status: resp.StatusCode, body: data}
		if resp.StatusCode >= 500 {
			c.log.V(1).Info("auth call failed with server error, retrying", "path", path, "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("%s: status %d", path, resp.StatusCode))
		}
		return nil
	})
	if res.status != 0 {
		return res, nil
	}
	if err == nil {
		err = ErrNetworkUnavailable
	}
	return callResult{}, err
}

// classify turns a failed auth call into an AuthError.
func (c *Client) classify(res callResult, err error) *AuthError {
	if err != nil {
		return &AuthError{
			Kind:    KindNetworkUnavailable,
			Message: c.config.Messages.fallbackMessage(0),
			Err:     err,
		}
	}
	kind := KindUnknown
	if res.status == http.StatusBadRequest || res.status == http.StatusUnauthorized {
		kind = KindInvalidCredentials
	}
	return &AuthError{
		Kind:    kind,
		Status:  res.status,
		Message: c.config.Messages.message(res.status, res.body),
	}
}
