// Package authtest runs an in-process dashboard auth backend for tests and
// the load generator.
//
// The server speaks the same cookie protocol as the production backend:
// access and refresh JWTs in HttpOnly cookies, each paired with a readable
// CSRF cookie, CSRF checked on mutating requests and on refresh, and 401 for
// every authentication failure. Knobs let tests expire access tokens, hold or
// fail refreshes, and inspect what the client sent.
package authtest
