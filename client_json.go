package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DoJSON sends in as JSON to path through the request pipeline and decodes a
// 2xx body into out. Either may be nil.
//
// A 403 yields an *AuthError of kind KindForbidden, a 401 that survived the
// refresh-and-retry yields KindUnauthorized, a failed refresh KindRefreshFailed
// and any other non-2xx KindUnknown. Transport failures yield
// KindNetworkUnavailable.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return authErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &AuthError{Kind: KindNetworkUnavailable, Message: c.config.Messages.fallbackMessage(0), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &AuthError{Kind: KindNetworkUnavailable, Status: resp.StatusCode, Message: c.config.Messages.fallbackMessage(0), Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return &AuthError{Kind: KindForbidden, Status: resp.StatusCode, Message: c.config.Messages.message(resp.StatusCode, data)}
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Kind: KindUnauthorized, Status: resp.StatusCode, Message: c.config.Messages.message(resp.StatusCode, data)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &AuthError{Kind: KindUnknown, Status: resp.StatusCode, Message: c.config.Messages.message(resp.StatusCode, data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
