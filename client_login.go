package goSession

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/goSession/session"
)

// Login authenticates with username and password.
//
// On success the verdict cache is invalidated and the authenticated state is
// published. On failure the state keeps its authentication fields, stops
// loading and carries the user-facing message; the returned *AuthError has
// kind KindInvalidCredentials, KindNetworkUnavailable or KindUnknown.
func (c *Client) Login(ctx context.Context, creds Credentials) (*UserProfile, error) {
	c.state.Update(func(s State) State {
		s.Loading = true
		s.Error = ""
		return s
	})

	user, authErr := c.login(ctx, creds)
	if authErr != nil {
		c.state.Update(func(s State) State {
			s.Loading = false
			s.Error = authErr.Message
			return s
		})
		c.metrics.Inc(MetricLoginFailure)
		c.log.Info("login failed", "username", creds.Username, "kind", authErr.Kind.String(), "status", authErr.Status)
		c.emit(ctx, AuditLoginFailure, nil, authErr)
		return nil, authErr
	}

	c.invalidateCache(ctx)
	c.state.Publish(session.Authenticated(user))
	c.metrics.Inc(MetricLoginSuccess)
	c.log.Info("login succeeded", "user_id", user.ID, "role", user.RoleName)
	c.emit(ctx, AuditLoginSuccess, user, nil)
	return user, nil
}

func (c *Client) login(ctx context.Context, creds Credentials) (*UserProfile, *AuthError) {
	res, err := c.call(ctx, c.config.Timeouts.Login, http.MethodPost, c.config.Endpoints.Login, creds)
	if err != nil || !res.ok() {
		return nil, c.classify(res, err)
	}

	var body loginResponse
	if err := json.Unmarshal(res.body, &body); err != nil {
		return nil, &AuthError{
			Kind:    KindUnknown,
			Status:  res.status,
			Message: c.config.Messages.Generic,
			Err:     errors.Join(ErrMalformedResponse, err),
		}
	}
	user, err := body.profile()
	if err != nil {
		return nil, &AuthError{
			Kind:    KindUnknown,
			Status:  res.status,
			Message: c.config.Messages.Generic,
			Err:     err,
		}
	}
	return user, nil
}
