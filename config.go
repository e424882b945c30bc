package goSession

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete client configuration.
//
// Start from [DefaultConfig] and override fields; [Builder.Build] validates the
// result.
type Config struct {
	BaseURL   string          `mapstructure:"base_url" validate:"required,url"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Timeouts  TimeoutConfig   `mapstructure:"timeouts"`
	Retry     RetryConfig     `mapstructure:"retry"`
	CSRF      CSRFConfig      `mapstructure:"csrf"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// EndpointsConfig holds the auth endpoint paths, relative to BaseURL.
type EndpointsConfig struct {
	Login   string `mapstructure:"login" validate:"required,startswith=/"`
	Logout  string `mapstructure:"logout" validate:"required,startswith=/"`
	Me      string `mapstructure:"me" validate:"required,startswith=/"`
	Refresh string `mapstructure:"refresh" validate:"required,startswith=/"`
	// Excluded lists additional paths that never trigger a refresh on 401.
	Excluded []string `mapstructure:"excluded" validate:"dive,startswith=/"`
}

// CacheConfig sets the verdict lifetime for each identity-check outcome.
type CacheConfig struct {
	AuthenticatedTTL   time.Duration `mapstructure:"authenticated_ttl" validate:"gt=0"`
	UnauthenticatedTTL time.Duration `mapstructure:"unauthenticated_ttl" validate:"gt=0"`
	UnauthorizedTTL    time.Duration `mapstructure:"unauthorized_ttl" validate:"gt=0"`
	ErrorTTL           time.Duration `mapstructure:"error_ttl" validate:"gt=0"`
	// RedisPrefix namespaces verdict keys when a Redis cache is configured.
	RedisPrefix string `mapstructure:"redis_prefix"`
}

// TimeoutConfig bounds each auth call. A timeout is reported as a network error.
type TimeoutConfig struct {
	Login   time.Duration `mapstructure:"login" validate:"gt=0"`
	Check   time.Duration `mapstructure:"check" validate:"gt=0"`
	Refresh time.Duration `mapstructure:"refresh" validate:"gt=0"`
	Logout  time.Duration `mapstructure:"logout" validate:"gt=0"`
}

// RetryConfig controls the retry of auth calls on transport errors and 5xx.
type RetryConfig struct {
	MaxRetries uint64        `mapstructure:"max_retries" validate:"lte=5"`
	Backoff    time.Duration `mapstructure:"backoff" validate:"gte=0"`
}

// CSRFConfig names the CSRF header and the cookies it is read from.
type CSRFConfig struct {
	HeaderName    string `mapstructure:"header_name" validate:"required"`
	AccessCookie  string `mapstructure:"access_cookie" validate:"required"`
	RefreshCookie string `mapstructure:"refresh_cookie" validate:"required"`
}

// RefreshConfig configures the request pipeline around refresh.
type RefreshConfig struct {
	// ProactiveWindow refreshes before dispatch when the access token cookie
	// expires within the window. Zero disables proactive refresh.
	ProactiveWindow time.Duration `mapstructure:"proactive_window" validate:"gte=0"`
	// AccessTokenCookie is the cookie holding the access JWT.
	AccessTokenCookie string `mapstructure:"access_token_cookie" validate:"required"`
	// RequestIDHeader is set on every request when non-empty.
	RequestIDHeader string `mapstructure:"request_id_header"`
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size" validate:"gte=0"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

// MessagesConfig holds the user-facing fallback messages used when the
// server does not provide one.
type MessagesConfig struct {
	InvalidCredentials string `mapstructure:"invalid_credentials" validate:"required"`
	NetworkUnavailable string `mapstructure:"network_unavailable" validate:"required"`
	Generic            string `mapstructure:"generic" validate:"required"`
}

// DefaultConfig returns the dashboard defaults. BaseURL must still be set.
func DefaultConfig() Config {
	return Config{
		Endpoints: EndpointsConfig{
			Login:    "/auth/role-based-login",
			Logout:   "/auth/logout",
			Me:       "/auth/me",
			Refresh:  "/auth/refresh",
			Excluded: []string{"/auth/login"},
		},
		Cache: CacheConfig{
			AuthenticatedTTL:   5 * time.Minute,
			UnauthenticatedTTL: 30 * time.Second,
			UnauthorizedTTL:    60 * time.Second,
			ErrorTTL:           10 * time.Second,
			RedisPrefix:        "gs",
		},
		Timeouts: TimeoutConfig{
			Login:   10 * time.Second,
			Check:   10 * time.Second,
			Refresh: 10 * time.Second,
			Logout:  10 * time.Second,
		},
		Retry: RetryConfig{
			MaxRetries: 1,
			Backoff:    100 * time.Millisecond,
		},
		CSRF: CSRFConfig{
			HeaderName:    "X-CSRF-TOKEN",
			AccessCookie:  "csrf_access_token",
			RefreshCookie: "csrf_refresh_token",
		},
		Refresh: RefreshConfig{
			AccessTokenCookie: "access_token",
			RequestIDHeader:   "X-Request-ID",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Messages: MessagesConfig{
			InvalidCredentials: "Sai tên đăng nhập hoặc mật khẩu",
			NetworkUnavailable: "Không thể kết nối đến server",
			Generic:            "Đã xảy ra lỗi, vui lòng thử lại",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Endpoints.Excluded = append([]string(nil), cfg.Endpoints.Excluded...)
	return out
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url: unsupported scheme %q", u.Scheme)
	}

	if c.Cache.UnauthenticatedTTL > c.Cache.AuthenticatedTTL {
		return errors.New("cache: unauthenticated_ttl must not exceed authenticated_ttl")
	}
	if c.Refresh.ProactiveWindow > 0 && c.Refresh.ProactiveWindow >= c.Cache.AuthenticatedTTL {
		return errors.New("refresh: proactive_window must be shorter than cache.authenticated_ttl")
	}
	if strings.EqualFold(c.CSRF.AccessCookie, c.CSRF.RefreshCookie) {
		return errors.New("csrf: access_cookie and refresh_cookie must differ")
	}
	return nil
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		if e.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s: failed %s=%s", e.Namespace(), e.Tag(), e.Param()))
			continue
		}
		messages = append(messages, fmt.Sprintf("%s: failed %s", e.Namespace(), e.Tag()))
	}
	return errors.New(strings.Join(messages, "; "))
}
