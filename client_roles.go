package goSession

import "github.com/MrEthical07/goSession/permission"

// CurrentUser returns the signed-in user, or nil.
func (c *Client) CurrentUser() *UserProfile {
	return c.state.Load().User
}

// HasRole reports whether the current user holds role. Comparison is
// case-insensitive and treats registered aliases as equal.
func (c *Client) HasRole(role string) bool {
	user := c.CurrentUser()
	return user != nil && c.roles.Matches(user.RoleName, role)
}

func (c *Client) IsAdmin() bool {
	return c.HasRole(permission.RoleAdmin)
}

// IsBranch matches both "branch" and "branch_manager".
func (c *Client) IsBranch() bool {
	return c.HasRole(permission.RoleBranchManager)
}

// IsCompany matches both "company" and "company_manager".
func (c *Client) IsCompany() bool {
	return c.HasRole(permission.RoleCompanyManager)
}

// Roles returns the role registry used for comparisons.
func (c *Client) Roles() *permission.Registry {
	return c.roles
}
