package goSession

import (
	"context"
	"net/http"
)

// RefreshToken renews the session cookies and re-reads the identity.
//
// Concurrent callers, including the request pipeline, share one refresh. On
// failure the session is cleared, a background logout is issued and the
// session-expired handler runs, all before any caller returns; the error
// matches ErrRefreshFailed.
func (c *Client) RefreshToken(ctx context.Context) (*UserProfile, error) {
	if _, err := c.coord.Do(ctx); err != nil {
		return nil, err
	}
	user := c.CurrentUser()
	if user == nil {
		// a logout raced the refresh
		return nil, &AuthError{Kind: KindRefreshFailed, Message: c.config.Messages.fallbackMessage(http.StatusUnauthorized)}
	}
	return user, nil
}

// refresh is the coordinator's refresh function.
func (c *Client) refresh(ctx context.Context) error {
	res, err := c.call(ctx, c.config.Timeouts.Refresh, http.MethodPost, c.config.Endpoints.Refresh, struct{}{})
	if err != nil || !res.ok() {
		authErr := c.classify(res, err)
		authErr.Kind = KindRefreshFailed
		return authErr
	}

	c.invalidateCache(ctx)
	user := c.CheckAuthStatus(ctx, true)
	if user == nil {
		return &AuthError{
			Kind:    KindRefreshFailed,
			Status:  http.StatusUnauthorized,
			Message: c.config.Messages.fallbackMessage(http.StatusUnauthorized),
			Err:     ErrUnauthorized,
		}
	}

	c.metrics.Inc(MetricRefreshSuccess)
	c.log.V(1).Info("session refreshed", "user_id", user.ID)
	c.emit(ctx, AuditRefreshSuccess, user, nil)
	return nil
}

// sessionExpired runs once per failed refresh, before waiters are released.
func (c *Client) sessionExpired(err error) {
	c.metrics.Inc(MetricRefreshFailure)
	c.log.Info("session refresh failed, clearing session", "error", err.Error())
	c.emit(context.Background(), AuditRefreshFailure, nil, err)

	c.ResetAuth()

	if c.onExpired != nil {
		c.onExpired()
	}
}
