package goSession

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/internal/authtest"
	"github.com/MrEthical07/goSession/session"
)

func TestLoginMergesTopLevelIdentity(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	c := newTestClient(t, srv)

	user, err := c.Login(context.Background(), Credentials{Username: "branch", Password: "branch123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != "2" || user.RoleID != "2" || user.CompanyID != "c1" || user.BranchID != "b1" {
		t.Fatalf("unexpected profile: %+v", user)
	}

	st := c.State()
	if !st.IsAuthenticated || st.User != user || st.Loading || st.Error != "" {
		t.Fatalf("unexpected state after login: %+v", st)
	}
	if !c.IsBranch() || c.IsAdmin() || c.IsCompany() {
		t.Fatal("role predicates disagree with branch user")
	}
	if !c.HasRole("BRANCH_MANAGER") {
		t.Fatal("expected alias and case-insensitive role match")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	c := newTestClient(t, srv)

	_, err := c.Login(context.Background(), Credentials{Username: "admin", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected *AuthError with 401, got %#v", err)
	}

	st := c.State()
	if st.IsAuthenticated || st.Loading {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.Error != "Tên đăng nhập hoặc mật khẩu không đúng" {
		t.Fatalf("expected server message in state, got %q", st.Error)
	}
}

func TestLoginNetworkUnavailable(t *testing.T) {
	srv := authtest.NewServer(authtest.Options{})
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.Login(context.Background(), Credentials{Username: "admin", Password: "admin123"})
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("expected ErrNetworkUnavailable, got %v", err)
	}
	if got := c.State().Error; got != DefaultConfig().Messages.NetworkUnavailable {
		t.Fatalf("expected network fallback message, got %q", got)
	}
}

func TestLoginMalformedResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok","user":{"username":"ghost"}}`))
	}))
	defer backend.Close()

	transport := &http.Transport{}
	defer transport.CloseIdleConnections()
	c, err := New().WithConfig(testConfig(backend.URL)).WithHTTPTransport(transport).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	_, err = c.Login(context.Background(), Credentials{Username: "ghost", Password: "x"})
	if !errors.Is(err, ErrMalformedResponse) || !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected malformed response of kind unknown, got %v", err)
	}
	if c.State().IsAuthenticated {
		t.Fatal("malformed login must not authenticate")
	}
}

func TestLoginRetriesServerErrorOnce(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	srv.SetStatus("/auth/role-based-login", http.StatusBadGateway)
	c := newTestClient(t, srv)

	_, err := c.Login(context.Background(), Credentials{Username: "admin", Password: "admin123"})
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
	if got := srv.Calls("/auth/role-based-login"); got != 2 {
		t.Fatalf("expected one retry, got %d calls", got)
	}
}

func TestCheckAuthStatusCacheHitMakesNoCall(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	c := newTestClient(t, srv)
	ctx := context.Background()

	if _, err := c.Login(ctx, Credentials{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	first := c.CheckAuthStatus(ctx, false)
	if first == nil || first.ID != "1" {
		t.Fatalf("expected admin, got %+v", first)
	}
	if got := srv.Calls("/auth/me"); got != 1 {
		t.Fatalf("expected one identity call after login, got %d", got)
	}

	second := c.CheckAuthStatus(ctx, false)
	if second != first {
		t.Fatal("cache hit must return the cached profile")
	}
	if got := srv.Calls("/auth/me"); got != 1 {
		t.Fatalf("cache hit must not call the server, got %d calls", got)
	}
	if c.MetricsSnapshot().Counters[MetricCheckCacheHit] != 1 {
		t.Fatal("expected one cache hit")
	}
}

func TestCheckAuthStatusExpiredVerdictRechecks(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	cache := session.NewMemoryCache()
	c := newTestClient(t, srv, func(b *Builder) { b.WithCache(cache) })
	ctx := context.Background()

	if _, err := c.Login(ctx, Credentials{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	user := c.CheckAuthStatus(ctx, false)

	_ = cache.Set(ctx, session.Verdict{User: user, StoredAt: time.Now().Add(-10 * time.Minute), TTL: 5 * time.Minute})
	c.CheckAuthStatus(ctx, false)
	if got := srv.Calls("/auth/me"); got != 2 {
		t.Fatalf("expired verdict must be re-checked, got %d calls", got)
	}

	c.CheckAuthStatus(ctx, true)
	if got := srv.Calls("/auth/me"); got != 3 {
		t.Fatalf("forced check must bypass the cache, got %d calls", got)
	}
}

func TestCheckAuthStatusVerdictTTLByOutcome(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	cache := session.NewMemoryCache()
	c := newTestClient(t, srv, func(b *Builder) { b.WithCache(cache) })
	ctx := context.Background()
	cfg := DefaultConfig().Cache

	if user := c.CheckAuthStatus(ctx, true); user != nil {
		t.Fatalf("expected no user, got %+v", user)
	}
	v, _, _ := cache.Get(ctx)
	if v.User != nil || v.TTL != cfg.UnauthorizedTTL {
		t.Fatalf("401 verdict: got %+v", v)
	}

	srv.SetStatus("/auth/me", http.StatusInternalServerError)
	c.CheckAuthStatus(ctx, true)
	v, _, _ = cache.Get(ctx)
	if v.TTL != cfg.ErrorTTL {
		t.Fatalf("error verdict ttl: got %v want %v", v.TTL, cfg.ErrorTTL)
	}
	srv.SetStatus("/auth/me", 0)

	if _, err := c.Login(ctx, Credentials{Username: "company", Password: "company123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	c.CheckAuthStatus(ctx, false)
	v, _, _ = cache.Get(ctx)
	if v.User == nil || v.TTL != cfg.AuthenticatedTTL {
		t.Fatalf("authenticated verdict: got %+v", v)
	}
	if !c.IsCompany() {
		t.Fatal("expected company role")
	}
}

func TestCheckAuthStatusNegativeAnswer(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"authenticated":false}`))
	}))
	defer backend.Close()

	cache := session.NewMemoryCache()
	transport := &http.Transport{}
	defer transport.CloseIdleConnections()
	c, err := New().WithConfig(testConfig(backend.URL)).WithHTTPTransport(transport).WithCache(cache).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	if c.CheckAuthStatus(context.Background(), false) != nil {
		t.Fatal("expected nil user")
	}
	v, _, _ := cache.Get(context.Background())
	if v.TTL != DefaultConfig().Cache.UnauthenticatedTTL {
		t.Fatalf("negative verdict ttl: got %v", v.TTL)
	}
}

func TestLogoutClearsSessionWhenServerFails(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	cache := session.NewMemoryCache()
	c := newTestClient(t, srv, func(b *Builder) { b.WithCache(cache) })
	ctx := context.Background()

	if _, err := c.Login(ctx, Credentials{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	c.CheckAuthStatus(ctx, false)

	srv.SetStatus("/auth/logout", http.StatusInternalServerError)
	c.Logout(ctx)

	if st := c.State(); st.IsAuthenticated || st.User != nil {
		t.Fatalf("expected cleared state, got %+v", st)
	}
	if _, ok, _ := cache.Get(ctx); ok {
		t.Fatal("expected cache invalidated")
	}
}

func TestResetAuthClearsBeforeServerLogout(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	c := newTestClient(t, srv)
	ctx := context.Background()

	if _, err := c.Login(ctx, Credentials{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	c.ResetAuth()
	if c.State().IsAuthenticated {
		t.Fatal("ResetAuth must clear the state immediately")
	}

	c.Close()
	if got := srv.Calls("/auth/logout"); got != 1 {
		t.Fatalf("expected one background logout, got %d", got)
	}
}

func TestSubscribeSeesCurrentThenTransitions(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	c := newTestClient(t, srv)

	ch, cancel := c.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.IsAuthenticated {
		t.Fatal("expected unauthenticated initial state")
	}

	if _, err := c.Login(context.Background(), Credentials{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	latest := <-ch
	if !latest.IsAuthenticated || latest.Version <= initial.Version {
		t.Fatalf("expected newer authenticated state, got %+v", latest)
	}
}

func TestRefreshTokenRenewsSession(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	c := newTestClient(t, srv)
	ctx := context.Background()

	if _, err := c.Login(ctx, Credentials{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	srv.Expire()

	user, err := c.RefreshToken(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if user.ID != "1" || srv.RefreshRounds() != 1 {
		t.Fatalf("unexpected refresh outcome: user=%+v rounds=%d", user, srv.RefreshRounds())
	}
}

func TestRefreshTokenFailureClearsSession(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	var expired int
	c := newTestClient(t, srv, func(b *Builder) {
		b.WithSessionExpiredHandler(func() { expired++ })
	})
	ctx := context.Background()

	if _, err := c.Login(ctx, Credentials{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	srv.SetRefreshFailure(true)

	if _, err := c.RefreshToken(ctx); !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("expected ErrRefreshFailed, got %v", err)
	}
	if c.State().IsAuthenticated {
		t.Fatal("failed refresh must clear the session")
	}
	if expired != 1 {
		t.Fatalf("expected expired handler once, got %d", expired)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithBaseURL("http://localhost:5000")
	c, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestInvalidateAuthCacheKeepsState(t *testing.T) {
	srv := newTestServer(t, authtest.Options{})
	c := newTestClient(t, srv)
	ctx := context.Background()

	if _, err := c.Login(ctx, Credentials{Username: "admin", Password: "admin123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	c.CheckAuthStatus(ctx, false)
	c.InvalidateAuthCache(ctx)

	if !c.State().IsAuthenticated {
		t.Fatal("invalidating the cache must not sign out")
	}
	before := srv.Calls("/auth/me")
	c.CheckAuthStatus(ctx, false)
	if got := srv.Calls("/auth/me"); got != before+1 {
		t.Fatalf("expected a fresh identity call after invalidation, got %d", got-before)
	}
}
