package middleware

import (
	"context"
	"net/http"
	"net/url"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// DefaultLoginPath is where unauthenticated navigation is sent.
const DefaultLoginPath = "/auth/login"

// ReturnURLCookie carries the originally requested URL across the login
// redirect in [Guard.Middleware].
const ReturnURLCookie = "return_url"

// Requirement is the static metadata a route declares.
type Requirement struct {
	// RequiredRole is compared with the user's role through the client's role
	// registry. Empty admits any signed-in user.
	RequiredRole string
}

// Outcome is the verdict of a guard check.
type Outcome int

const (
	Allow Outcome = iota
	Redirect
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decision is returned by [Guard.Check].
type Decision struct {
	Outcome Outcome
	// RedirectURL is set when Outcome is Redirect.
	RedirectURL string
	// User is the user the decision was made for, nil when signed out.
	User *goSession.UserProfile
}

// MismatchPolicy selects what happens when the user's role does not satisfy
// the route.
type MismatchPolicy int

const (
	// MismatchResetSession ends the session and redirects to login. Users must
	// sign in again to switch role context.
	MismatchResetSession MismatchPolicy = iota
	// MismatchForbid keeps the session and denies the route.
	MismatchForbid
)

// Options configures a [Guard].
type Options struct {
	LoginPath  string
	Policy     MismatchPolicy
	ReturnURLs ReturnURLStore
}

// Guard decides whether navigation to a protected route may proceed.
type Guard struct {
	client     *goSession.Client
	loginPath  string
	policy     MismatchPolicy
	returnURLs ReturnURLStore
}

// NewGuard returns a guard backed by client. A nil ReturnURLs uses a
// [MemoryReturnURLStore].
func NewGuard(client *goSession.Client, opts Options) *Guard {
	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}
	if opts.ReturnURLs == nil {
		opts.ReturnURLs = NewMemoryReturnURLStore()
	}
	return &Guard{
		client:     client,
		loginPath:  opts.LoginPath,
		policy:     opts.Policy,
		returnURLs: opts.ReturnURLs,
	}
}

// ReturnURLs exposes the store so the login flow can restore the requested URL.
func (g *Guard) ReturnURLs() ReturnURLStore {
	return g.returnURLs
}

// Check always re-asks the backend, bypassing the verdict cache, then applies
// req to the returned user.
func (g *Guard) Check(ctx context.Context, requestedURL string, req Requirement) Decision {
	metrics := g.client.Metrics()

	user := g.client.CheckAuthStatus(ctx, true)
	if user == nil {
		if requestedURL != "" {
			_ = g.returnURLs.Save(ctx, requestedURL)
		}
		metrics.Inc(goSession.MetricGuardRedirected)
		return Decision{Outcome: Redirect, RedirectURL: g.loginURL(requestedURL)}
	}

	if req.RequiredRole != "" && !g.client.Roles().Matches(user.RoleName, req.RequiredRole) {
		metrics.Inc(goSession.MetricGuardRoleMismatch)
		if g.policy == MismatchForbid {
			return Decision{Outcome: Forbidden, User: user}
		}
		g.client.ResetAuth()
		metrics.Inc(goSession.MetricGuardRedirected)
		return Decision{Outcome: Redirect, RedirectURL: g.loginPath}
	}

	metrics.Inc(goSession.MetricGuardAllowed)
	return Decision{Outcome: Allow, User: user}
}

func (g *Guard) loginURL(returnURL string) string {
	if returnURL == "" {
		return g.loginPath
	}
	return g.loginPath + "?returnUrl=" + url.QueryEscape(returnURL)
}

type userContextKey struct{}

// UserFromContext returns the user admitted by [Guard.Middleware].
func UserFromContext(ctx context.Context) (*goSession.UserProfile, bool) {
	u, ok := ctx.Value(userContextKey{}).(*goSession.UserProfile)
	return u, ok
}

// Middleware adapts the guard to net/http. Redirects are 302 and also set the
// return_url cookie; forbidden routes get 403.
func (g *Guard) Middleware(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requested := r.URL.RequestURI()
			d := g.Check(r.Context(), requested, req)

			switch d.Outcome {
			case Allow:
				ctx := context.WithValue(r.Context(), userContextKey{}, d.User)
				next.ServeHTTP(w, r.WithContext(ctx))
			case Forbidden:
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				if d.User == nil {
					http.SetCookie(w, &http.Cookie{
						Name:     ReturnURLCookie,
						Value:    url.QueryEscape(requested),
						Path:     "/",
						HttpOnly: true,
						SameSite: http.SameSiteLaxMode,
						MaxAge:   int((10 * time.Minute).Seconds()),
					})
				}
				http.Redirect(w, r, d.RedirectURL, http.StatusFound)
			}
		})
	}
}
