package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/authtest"
)

func newGuardClient(t *testing.T) (*goSession.Client, *authtest.Server) {
	t.Helper()

	srv := authtest.NewServer(authtest.Options{})
	t.Cleanup(srv.Close)

	cfg := goSession.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Retry.Backoff = time.Millisecond

	transport := &http.Transport{}
	c, err := goSession.New().WithConfig(cfg).WithHTTPTransport(transport).Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
		transport.CloseIdleConnections()
	})
	return c, srv
}

func login(t *testing.T, c *goSession.Client, username, password string) {
	t.Helper()
	if _, err := c.Login(context.Background(), goSession.Credentials{Username: username, Password: password}); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
}

func TestCheckRedirectsSignedOutUser(t *testing.T) {
	c, _ := newGuardClient(t)
	g := NewGuard(c, Options{})
	ctx := context.Background()

	d := g.Check(ctx, "/reports?page=2", Requirement{RequiredRole: "admin"})
	if d.Outcome != Redirect {
		t.Fatalf("expected redirect, got %s", d.Outcome)
	}
	if d.RedirectURL != "/auth/login?returnUrl=%2Freports%3Fpage%3D2" {
		t.Fatalf("unexpected redirect url %q", d.RedirectURL)
	}

	saved, ok := g.ReturnURLs().Take(ctx)
	if !ok || saved != "/reports?page=2" {
		t.Fatalf("expected saved return url, got %q ok=%v", saved, ok)
	}
	if _, ok := g.ReturnURLs().Take(ctx); ok {
		t.Fatal("return url must be consumed by Take")
	}
}

func TestCheckBypassesVerdictCache(t *testing.T) {
	c, srv := newGuardClient(t)
	login(t, c, "admin", "admin123")
	g := NewGuard(c, Options{})

	for i := 0; i < 3; i++ {
		if d := g.Check(context.Background(), "/admin", Requirement{RequiredRole: "admin"}); d.Outcome != Allow {
			t.Fatalf("expected allow, got %s", d.Outcome)
		}
	}
	if got := srv.Calls("/auth/me"); got != 3 {
		t.Fatalf("expected one identity check per navigation, got %d", got)
	}
}

func TestCheckRoleEquivalence(t *testing.T) {
	c, _ := newGuardClient(t)
	login(t, c, "branch", "branch123")
	g := NewGuard(c, Options{})

	for _, role := range []string{"branch", "branch_manager", "Branch_Manager", ""} {
		d := g.Check(context.Background(), "/branch", Requirement{RequiredRole: role})
		if d.Outcome != Allow {
			t.Fatalf("role %q: expected allow, got %s", role, d.Outcome)
		}
		if d.User == nil || d.User.ID != "2" {
			t.Fatalf("role %q: expected branch user, got %+v", role, d.User)
		}
	}
}

func TestCheckRoleMismatchResetsSession(t *testing.T) {
	c, srv := newGuardClient(t)
	login(t, c, "branch", "branch123")
	g := NewGuard(c, Options{})

	d := g.Check(context.Background(), "/admin/users", Requirement{RequiredRole: "admin"})
	if d.Outcome != Redirect || d.RedirectURL != DefaultLoginPath {
		t.Fatalf("expected plain login redirect, got %+v", d)
	}
	if c.State().IsAuthenticated || c.CurrentUser() != nil {
		t.Fatal("expected session cleared on role mismatch")
	}
	if got := c.MetricsSnapshot().Counters[goSession.MetricGuardRoleMismatch]; got != 1 {
		t.Fatalf("expected one role mismatch, got %d", got)
	}

	c.Close()
	if srv.Calls("/auth/logout") != 1 {
		t.Fatal("expected background server logout")
	}
}

func TestCheckRoleMismatchForbidKeepsSession(t *testing.T) {
	c, _ := newGuardClient(t)
	login(t, c, "company", "company123")
	g := NewGuard(c, Options{Policy: MismatchForbid})

	d := g.Check(context.Background(), "/admin", Requirement{RequiredRole: "admin"})
	if d.Outcome != Forbidden {
		t.Fatalf("expected forbidden, got %s", d.Outcome)
	}
	if !c.State().IsAuthenticated || !c.IsCompany() {
		t.Fatal("forbid policy must keep the session")
	}
}

func TestMiddlewareRedirectSetsReturnCookie(t *testing.T) {
	c, _ := newGuardClient(t)
	g := NewGuard(c, Options{})

	h := g.Middleware(Requirement{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run for signed-out user")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/7", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/auth/login?returnUrl=%2Forders%2F7" {
		t.Fatalf("unexpected location %q", loc)
	}
	var found bool
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == ReturnURLCookie && ck.Value == "%2Forders%2F7" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected return_url cookie")
	}
}

func TestMiddlewareAdmitsAndForbids(t *testing.T) {
	c, _ := newGuardClient(t)
	login(t, c, "admin", "admin123")
	g := NewGuard(c, Options{Policy: MismatchForbid})

	var seen *goSession.UserProfile
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	g.Middleware(Requirement{RequiredRole: "admin"})(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run, got %d", rec.Code)
	}
	if seen == nil || seen.Username != "admin" {
		t.Fatalf("expected admitted user in context, got %+v", seen)
	}

	rec = httptest.NewRecorder()
	g.Middleware(Requirement{RequiredRole: "company"})(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/company", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
