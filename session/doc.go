// Package session holds the client-side session model: the published [State],
// the single-writer [StateCell] that publishes it, and the verdict [Cache] that
// short-circuits repeated identity checks.
//
// # Cache backends
//
// [MemoryCache] is the default and keeps one verdict per process. [Store] keeps
// the verdict in Redis in a compact versioned binary format so several processes
// acting for the same dashboard session can share it. The encoder is
// append-only: new versions add fields but never reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the data model and its storage. HTTP calls and TTL
// choices belong to the Client; role interpretation belongs to the
// permission package.
//
// # What this package must NOT do
//
//   - Import goSession, refresh, or middleware (no upward imports).
//   - Mutate a published [State] or [UserProfile] after it has been handed out.
//   - Store credentials or CSRF tokens.
package session
