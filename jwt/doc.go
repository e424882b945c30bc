// Package jwt mints and reads the session tokens carried in dashboard cookies.
//
// The backend keeps access and refresh tokens in HttpOnly cookies and pairs
// each with a CSRF token. [Manager] mints and verifies such tokens and is used
// by the test backend and the load generator. [Inspect] reads claims without
// verifying the signature; the client uses it only to schedule a proactive
// refresh and never to make an authorization decision.
package jwt
