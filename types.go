package goSession

import (
	"fmt"
	"strconv"

	"github.com/MrEthical07/goSession/session"
)

// UserProfile is the identity of the signed-in user.
type UserProfile = session.UserProfile

// State is the published session state.
type State = session.State

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// flexString accepts both JSON strings and numbers. The backend reports ids
// as integers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(data)
	return nil
}

type wireUser struct {
	ID        flexString `json:"id"`
	Username  string     `json:"username"`
	RoleID    flexString `json:"roleId"`
	RoleName  string     `json:"roleName"`
	CompanyID flexString `json:"companyId"`
	BranchID  flexString `json:"branchId"`
}

// loginResponse is the body of a successful role-based login. Some backends
// report roleId, companyId and branchId at the top level; those take
// precedence over the nested user object.
type loginResponse struct {
	Message   string     `json:"message"`
	User      *wireUser  `json:"user"`
	RoleID    flexString `json:"roleId"`
	CompanyID flexString `json:"companyId"`
	BranchID  flexString `json:"branchId"`
}

func (r loginResponse) profile() (*UserProfile, error) {
	if r.User == nil || r.User.ID == "" {
		return nil, ErrMalformedResponse
	}
	return &UserProfile{
		ID:        string(r.User.ID),
		Username:  r.User.Username,
		RoleID:    string(firstNonEmpty(r.RoleID, r.User.RoleID)),
		RoleName:  r.User.RoleName,
		CompanyID: string(firstNonEmpty(r.CompanyID, r.User.CompanyID)),
		BranchID:  string(firstNonEmpty(r.BranchID, r.User.BranchID)),
	}, nil
}

// meResponse is the body of the identity endpoint.
type meResponse struct {
	Authenticated bool `json:"authenticated"`
	wireUser
}

// profile returns nil for a negative answer.
func (r meResponse) profile() *UserProfile {
	if !r.Authenticated || r.ID == "" {
		return nil
	}
	return &UserProfile{
		ID:        string(r.ID),
		Username:  r.Username,
		RoleID:    string(r.RoleID),
		RoleName:  r.RoleName,
		CompanyID: string(r.CompanyID),
		BranchID:  string(r.BranchID),
	}
}

func firstNonEmpty(values ...flexString) flexString {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
