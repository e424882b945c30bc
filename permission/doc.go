// Package permission resolves dashboard role names to canonical roles.
//
// # Role equivalence
//
// The backend reports roles in two spellings: short (`branch`, `company`) and
// canonical (`branch_manager`, `company_manager`). A [Registry] maps every
// registered alias, case-insensitively, to its canonical name so role checks
// compare canonical names only.
//
// # Architecture boundaries
//
// This package owns role naming. It does NOT know who the current user is or
// decide what a mismatch means; the Client and the route guard do.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Import goSession, session, or middleware.
package permission
