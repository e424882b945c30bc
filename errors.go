package goSession

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials is matched by login failures with status 400 or 401.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNetworkUnavailable is matched by transport failures and timeouts.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrRefreshFailed is matched when the session could not be refreshed.
	ErrRefreshFailed = errors.New("session refresh failed")
	// ErrForbidden is matched by 403 responses.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized is matched by a 401 that survived the refresh-and-retry.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnknown is matched by every other failure.
	ErrUnknown = errors.New("request failed")
	// ErrMalformedResponse is returned when a 2xx body does not carry the
	// expected identity fields.
	ErrMalformedResponse = errors.New("malformed auth response")
	// ErrClientClosed is returned by operations after Close.
	ErrClientClosed = errors.New("client closed")
)

// ErrorKind classifies an [AuthError].
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindInvalidCredentials
	KindNetworkUnavailable
	KindRefreshFailed
	KindForbidden
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindRefreshFailed:
		return "refresh_failed"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidCredentials:
		return ErrInvalidCredentials
	case KindNetworkUnavailable:
		return ErrNetworkUnavailable
	case KindRefreshFailed:
		return ErrRefreshFailed
	case KindForbidden:
		return ErrForbidden
	case KindUnauthorized:
		return ErrUnauthorized
	default:
		return ErrUnknown
	}
}

// AuthError is the error returned by Client operations and by the request
// pipeline. Message is the user-facing text; Status is the HTTP status or 0
// when no response was received.
type AuthError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is the sentinel of e's kind.
func (e *AuthError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

const maxMessageDepth = 4

// ExtractMessage returns the first usable message in a JSON error body: a
// non-empty "message" field, or any string field whose key contains
// "message", searched to a nesting depth of four. Keys are visited in sorted
// order.
func ExtractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return ""
	}
	return extractMessage(v, 0)
}

func extractMessage(v any, depth int) string {
	if depth > maxMessageDepth {
		return ""
	}
	switch obj := v.(type) {
	case map[string]any:
		if msg, ok := obj["message"].(string); ok && strings.TrimSpace(msg) != "" {
			return msg
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch val := obj[k].(type) {
			case string:
				if val != "" && strings.Contains(strings.ToLower(k), "message") {
					return val
				}
			case map[string]any, []any:
				if found := extractMessage(val, depth+1); found != "" {
					return found
				}
			}
		}
	case []any:
		for _, item := range obj {
			if found := extractMessage(item, depth+1); found != "" {
				return found
			}
		}
	}
	return ""
}

// fallbackMessage picks the configured message for a status class.
func (m MessagesConfig) fallbackMessage(status int) string {
	switch status {
	case 400, 401:
		return m.InvalidCredentials
	case 0:
		return m.NetworkUnavailable
	default:
		return m.Generic
	}
}

// message returns the server-provided message or the fallback for status.
func (m MessagesConfig) message(status int, body []byte) string {
	if msg := ExtractMessage(body); msg != "" {
		return msg
	}
	return m.fallbackMessage(status)
}
