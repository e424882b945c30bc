package goSession

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// CheckAuthStatus returns the signed-in user or nil.
//
// Unless forceRefresh is set, an unexpired cached verdict is republished and
// returned without a network call. Otherwise the identity endpoint is asked
// and its answer is cached for a lifetime that depends on the outcome. It
// never fails: errors are reported as unauthenticated.
func (c *Client) CheckAuthStatus(ctx context.Context, forceRefresh bool) *UserProfile {
	now := time.Now()

	if !forceRefresh {
		v, ok, err := c.cache.Get(ctx)
		if err != nil {
			c.log.Error(err, "verdict cache read failed")
		}
		if ok && !v.Expired(now) {
			c.metrics.Inc(MetricCheckCacheHit)
			c.publishVerdict(v.User)
			return v.User
		}
	}
	c.metrics.Inc(MetricCheckCacheMiss)

	c.state.Update(func(s State) State {
		s.Loading = true
		return s
	})

	user, ttl := c.checkRemote(ctx)
	c.storeVerdict(ctx, session.Verdict{User: user, StoredAt: now, TTL: ttl})
	c.publishVerdict(user)
	return user
}

func (c *Client) checkRemote(ctx context.Context) (*UserProfile, time.Duration) {
	res, err := c.call(ctx, c.config.Timeouts.Check, http.MethodGet, c.config.Endpoints.Me, nil)
	switch {
	case err != nil:
		c.metrics.Inc(MetricCheckError)
		c.log.Error(err, "identity check failed")
		return nil, c.config.Cache.ErrorTTL
	case res.status == http.StatusUnauthorized:
		c.metrics.Inc(MetricCheckUnauthenticated)
		return nil, c.config.Cache.UnauthorizedTTL
	case !res.ok():
		c.metrics.Inc(MetricCheckError)
		c.log.Info("identity check rejected", "status", res.status)
		return nil, c.config.Cache.ErrorTTL
	}

	var body meResponse
	if err := json.Unmarshal(res.body, &body); err != nil {
		c.metrics.Inc(MetricCheckError)
		c.log.Error(err, "identity response malformed")
		return nil, c.config.Cache.ErrorTTL
	}
	user := body.profile()
	if user == nil {
		c.metrics.Inc(MetricCheckUnauthenticated)
		return nil, c.config.Cache.UnauthenticatedTTL
	}
	c.metrics.Inc(MetricCheckAuthenticated)
	return user, c.config.Cache.AuthenticatedTTL
}

func (c *Client) publishVerdict(user *UserProfile) {
	if user != nil {
		c.state.Publish(session.Authenticated(user))
		return
	}
	c.state.Publish(session.Unauthenticated())
}

func (c *Client) storeVerdict(ctx context.Context, v session.Verdict) {
	if err := c.cache.Set(ctx, v); err != nil {
		c.log.Error(err, "verdict cache write failed")
	}
}

// InvalidateAuthCache drops the cached verdict so the next check asks the
// server. The published state is unchanged.
func (c *Client) InvalidateAuthCache(ctx context.Context) {
	c.invalidateCache(ctx)
}

func (c *Client) invalidateCache(ctx context.Context) {
	if err := c.cache.Invalidate(ctx); err != nil {
		c.log.Error(err, "verdict cache invalidate failed")
	}
}
