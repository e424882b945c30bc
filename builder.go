package goSession

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/goSession/permission"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/session"
	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Client]. A Builder is single-use.
type Builder struct {
	config Config

	base      http.RoundTripper
	creds     CredentialProvider
	cache     session.Cache
	redis     redis.UniversalClient
	redisName string
	logger    *logr.Logger
	auditSink AuditSink
	roles     *permission.Registry
	onExpired func()

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(base string) *Builder {
	b.config.BaseURL = base
	return b
}

// WithHTTPTransport sets the transport the pipeline dispatches on. The
// default is [http.DefaultTransport].
func (b *Builder) WithHTTPTransport(rt http.RoundTripper) *Builder {
	b.base = rt
	return b
}

// WithCredentials sets the cookie store. The default is a fresh
// [NewCookieJarProvider].
func (b *Builder) WithCredentials(p CredentialProvider) *Builder {
	b.creds = p
	return b
}

// WithCache sets the verdict cache. It takes precedence over WithRedis.
func (b *Builder) WithCache(c session.Cache) *Builder {
	b.cache = c
	return b
}

// WithRedis stores the verdict in Redis under the session name, so that
// processes sharing a session share its verdict.
func (b *Builder) WithRedis(client redis.UniversalClient, sessionName string) *Builder {
	b.redis = client
	b.redisName = sessionName
	return b
}

func (b *Builder) WithLogger(l logr.Logger) *Builder {
	b.logger = &l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRoles replaces the default role registry.
func (b *Builder) WithRoles(r *permission.Registry) *Builder {
	b.roles = r
	return b
}

// WithSessionExpiredHandler registers fn to run once per failed refresh,
// after the session has been cleared.
func (b *Builder) WithSessionExpiredHandler(fn func()) *Builder {
	b.onExpired = fn
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, err
	}

	if b.redis != nil && b.redisName == "" {
		return nil, errors.New("redis cache requires a session name")
	}

	log := logr.Discard()
	if b.logger != nil {
		log = *b.logger
	}

	creds := b.creds
	if creds == nil {
		jar, err := NewCookieJarProvider()
		if err != nil {
			return nil, err
		}
		creds = jar
	}

	cache := b.cache
	switch {
	case cache != nil:
	case b.redis != nil:
		cache = session.NewStore(b.redis, cfg.Cache.RedisPrefix, b.redisName)
	default:
		cache = session.NewMemoryCache()
	}

	roles := b.roles
	if roles == nil {
		roles = permission.DefaultRegistry()
	}

	base := b.base
	if base == nil {
		base = http.DefaultTransport
	}

	c := &Client{
		config:    cfg,
		baseURL:   baseURL,
		creds:     creds,
		cache:     cache,
		state:     session.NewStateCell(),
		roles:     roles,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		log:       log.WithName("gosession"),
		onExpired: b.onExpired,
	}

	coord, err := refresh.New(c.refresh, refresh.Options{
		OnFailure: c.sessionExpired,
		Timeout:   cfg.Timeouts.Refresh + cfg.Timeouts.Check,
	})
	if err != nil {
		return nil, err
	}
	c.coord = coord

	c.transport = &Transport{
		base:      base,
		creds:     creds,
		refresher: coord,
		csrf:      cfg.CSRF,
		refresh:   cfg.Refresh,
		endpoints: cfg.Endpoints,
		messages:  cfg.Messages,
		metrics:   c.metrics,
		log:       c.log.WithName("transport"),
	}
	c.http = &http.Client{Transport: c.transport}

	b.built = true
	return c, nil
}
