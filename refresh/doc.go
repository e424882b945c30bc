// Package refresh implements the single-flight token refresh coordinator.
//
// # Protocol
//
// A [Coordinator] is either Idle or Refreshing. The first caller that reports an
// authentication failure while Idle becomes the leader and runs the refresh
// function; callers that arrive while Refreshing are queued. When the refresh
// completes the coordinator returns to Idle and detaches the queue before any
// waiter is released, runs the failure hook if the refresh failed, and then
// releases every waiter in arrival order with the same outcome.
//
// # Architecture boundaries
//
// This package owns only the coordination protocol. What "refresh" means (which
// endpoint, which identity check) and what clearing the session involves are
// supplied by the caller as functions.
//
// # What this package must NOT do
//
//   - Issue HTTP calls or read cookies.
//   - Import goSession or session.
//   - Retry a failed refresh on its own.
package refresh
