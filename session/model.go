package session

import "time"

// UserProfile is the identity attached to an authenticated session.
//
// UserProfile values are built once from a validated server response and are
// treated as immutable afterwards.
type UserProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	RoleID    string `json:"roleId"`
	RoleName  string `json:"roleName"`
	CompanyID string `json:"companyId,omitempty"`
	BranchID  string `json:"branchId,omitempty"`
}

// State is the published authentication state.
//
// A State is replaced wholesale on every transition; Version increases by one
// with every publish.
type State struct {
	IsAuthenticated bool
	User            *UserProfile
	Loading         bool
	Error           string
	Version         uint64
}

// Unauthenticated returns the initial, signed-out state.
func Unauthenticated() State {
	return State{}
}

// Authenticated returns the signed-in state for user.
func Authenticated(user *UserProfile) State {
	return State{IsAuthenticated: true, User: user}
}

// Verdict is the cached answer to "is the caller authenticated, and as whom".
// A nil User is a negative verdict.
type Verdict struct {
	User     *UserProfile
	StoredAt time.Time
	TTL      time.Duration
}

// Expired reports whether the verdict is stale at now.
func (v Verdict) Expired(now time.Time) bool {
	return now.Sub(v.StoredAt) >= v.TTL
}

// Authenticated reports whether the verdict is positive.
func (v Verdict) Authenticated() bool {
	return v.User != nil
}
