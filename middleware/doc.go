// Package middleware gates protected routes on the session held by a
// goSession.Client.
//
// # Guard
//
// [Guard.Check] forces an identity check on every navigation, then compares
// the route's [Requirement] with the user's role using the client's role
// registry, so "branch" and "branch_manager" are the same role. A signed-out
// user is redirected to the login path with the requested URL saved in a
// [ReturnURLStore]. A role mismatch follows the [MismatchPolicy].
//
// [Guard.Middleware] is the net/http adapter. Admitted requests carry the user
// in their context, see [UserFromContext].
//
// # What this package must NOT do
//
//   - Talk to auth endpoints directly (the Client does).
//   - Read or write session state except through Client calls.
//   - Interpret role names itself (the permission registry does).
package middleware
