package goSession

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goSession/session"
)

// Logout ends the session on the server and clears it locally. The local
// clear always happens; a server failure is only logged.
func (c *Client) Logout(ctx context.Context) {
	user := c.CurrentUser()
	err := c.logoutRemote(ctx)

	c.invalidateCache(ctx)
	c.state.Publish(session.Unauthenticated())
	c.metrics.Inc(MetricLogout)
	c.emit(ctx, AuditLogout, user, err)
}

// ResetAuth clears the session immediately and asks the server to end it in
// the background.
func (c *Client) ResetAuth() {
	user := c.CurrentUser()

	c.state.Publish(session.Unauthenticated())
	c.invalidateCache(context.Background())
	c.metrics.Inc(MetricSessionReset)
	c.emit(context.Background(), AuditSessionReset, user, nil)

	started := c.goBackground(func() {
		_ = c.logoutRemote(context.Background())
	})
	if !started {
		c.log.V(1).Info("client closed, skipping background logout")
	}
}

func (c *Client) logoutRemote(ctx context.Context) error {
	res, err := c.call(ctx, c.config.Timeouts.Logout, http.MethodPost, c.config.Endpoints.Logout, struct{}{})
	if err == nil && !res.ok() {
		err = c.classify(res, nil)
	}
	if err != nil {
		c.log.Error(err, "server logout failed, session cleared locally")
		return err
	}
	return nil
}
