// Package goSession is the client-side session layer of the leak-monitoring
// dashboard: it keeps the signed-in user, attaches session credentials to
// every API call, and recovers from expired access tokens with a single
// coordinated refresh.
//
// A [Client] is assembled with [Builder]:
//
//	client, err := goSession.New().
//		WithBaseURL("https://dashboard.example.com/api").
//		WithLogger(logger).
//		Build()
//
// Feature code issues requests through [Client.HTTPClient] or
// [Client.DoJSON] and reads [Client.State] or the role predicates. The
// middleware package gates routes on the same Client.
//
// # Architecture boundaries
//
// goSession owns the session lifecycle: login, identity checks, refresh,
// logout, and the request pipeline ([Transport]). State and cache storage
// live in session/, single-flight refresh in refresh/, and role naming in
// permission/.
//
// # What this package must NOT do
//
//   - Store passwords or tokens outside the configured [CredentialProvider].
//   - Make authorization decisions from unverified token claims; claims are
//     read only to schedule a proactive refresh.
//   - Import middleware/ (the dependency runs the other way).
package goSession
