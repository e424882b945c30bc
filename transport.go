package goSession

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

type refresher interface {
	Do(ctx context.Context) (refresh.Result, error)
}

// Transport is the request pipeline. It attaches session cookies and the
// CSRF header to every request, and on a 401 from a non-auth endpoint joins
// the single-flight refresh and replays the request once.
//
// A Transport is created by [Builder.Build] and reached through
// [Client.HTTPClient].
type Transport struct {
	base      http.RoundTripper
	creds     CredentialProvider
	refresher refresher
	csrf      CSRFConfig
	refresh   RefreshConfig
	endpoints EndpointsConfig
	messages  MessagesConfig
	metrics   *Metrics
	log       logr.Logger
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	defer func() { t.metrics.Observe(MetricRequestLatency, time.Since(start)) }()

	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	requestID := ""
	if h := t.refresh.RequestIDHeader; h != "" {
		requestID = req.Header.Get(h)
		if requestID == "" {
			requestID = uuid.NewString()
		}
	}

	authEndpoint := t.isAuthEndpoint(req.URL.Path)

	if !authEndpoint && t.accessTokenExpiring(req) {
		t.log.V(1).Info("access token near expiry, refreshing before dispatch", "path", req.URL.Path)
		if err := t.joinRefresh(req.Context()); err != nil {
			return nil, err
		}
	}

	resp, err := t.send(req, body, requestID)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && !authEndpoint:
		drainAndClose(resp.Body)
		t.log.V(1).Info("unauthorized response, refreshing session", "path", req.URL.Path, "request_id", requestID)
		if err := t.joinRefresh(req.Context()); err != nil {
			return nil, err
		}
		t.metrics.Inc(MetricRequestRetried)
		// a second 401 is returned to the caller as-is
		return t.send(req, body, requestID)
	case resp.StatusCode == http.StatusForbidden:
		t.metrics.Inc(MetricRequestForbidden)
		t.log.V(1).Info("forbidden response", "path", req.URL.Path, "request_id", requestID)
	}
	return resp, nil
}

func (t *Transport) joinRefresh(ctx context.Context) error {
	_, err := t.refresher.Do(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Kind == KindRefreshFailed {
		return authErr
	}
	return &AuthError{
		Kind:    KindRefreshFailed,
		Status:  http.StatusUnauthorized,
		Message: t.messages.fallbackMessage(http.StatusUnauthorized),
		Err:     err,
	}
}

// send dispatches a copy of orig with freshly read credentials.
func (t *Transport) send(orig *http.Request, body []byte, requestID string) (*http.Response, error) {
	req := orig.Clone(orig.Context())
	req.Body, req.GetBody, req.ContentLength = http.NoBody, nil, 0
	if len(body) > 0 {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		req.ContentLength = int64(len(body))
	}

	req.Header.Del("Cookie")
	for _, c := range t.creds.Cookies(req.URL) {
		req.AddCookie(c)
	}

	if t.needsCSRF(req) {
		name := t.csrf.AccessCookie
		if t.isRefreshEndpoint(req.URL.Path) {
			name = t.csrf.RefreshCookie
		}
		if token := cookieValue(t.creds, req.URL, name); token != "" {
			req.Header.Set(t.csrf.HeaderName, token)
			t.metrics.Inc(MetricCSRFAttached)
		} else {
			req.Header.Del(t.csrf.HeaderName)
			t.metrics.Inc(MetricCSRFMissing)
		}
	}

	if requestID != "" {
		req.Header.Set(t.refresh.RequestIDHeader, requestID)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		t.creds.SetCookies(req.URL, cookies)
	}
	return resp, nil
}

func (t *Transport) needsCSRF(req *http.Request) bool {
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return t.isRefreshEndpoint(req.URL.Path)
}

func (t *Transport) isRefreshEndpoint(path string) bool {
	return strings.HasSuffix(path, t.endpoints.Refresh)
}

func (t *Transport) isAuthEndpoint(path string) bool {
	for _, p := range [...]string{t.endpoints.Login, t.endpoints.Logout, t.endpoints.Me, t.endpoints.Refresh} {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	for _, p := range t.endpoints.Excluded {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

func (t *Transport) accessTokenExpiring(req *http.Request) bool {
	if t.refresh.ProactiveWindow <= 0 {
		return false
	}
	raw := cookieValue(t.creds, req.URL, t.refresh.AccessTokenCookie)
	if raw == "" {
		return false
	}
	claims, err := jwt.Inspect(raw)
	if err != nil {
		t.log.V(1).Info("access token cookie is not a readable JWT", "error", err.Error())
		return false
	}
	return claims.ExpiresWithin(t.refresh.ProactiveWindow, time.Now())
}

func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
