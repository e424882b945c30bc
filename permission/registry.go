package permission

import (
	"errors"
	"strings"
	"sync"
)

// Canonical dashboard roles.
const (
	RoleAdmin          = "admin"
	RoleBranchManager  = "branch_manager"
	RoleCompanyManager = "company_manager"
)

var (
	// ErrRegistryFrozen is returned when registering into a frozen registry.
	ErrRegistryFrozen = errors.New("role registry frozen")
	// ErrRoleNameEmpty is returned for an empty role or alias.
	ErrRoleNameEmpty = errors.New("role name empty")
	// ErrAliasConflict is returned when an alias already maps to another role.
	ErrAliasConflict = errors.New("role alias already registered")
)

// Registry maps role aliases to canonical role names.
//
// Registry instances are populated during initialization, frozen, and then
// only read.
type Registry struct {
	mu      sync.RWMutex
	aliases map[string]string
	frozen  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{aliases: make(map[string]string)}
}

// DefaultRegistry returns a frozen registry holding the three dashboard roles
// and their short spellings.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(RoleAdmin)
	_ = r.Register(RoleBranchManager, "branch")
	_ = r.Register(RoleCompanyManager, "company")
	r.Freeze()
	return r
}

// Register adds a canonical role and its aliases. The canonical name is always
// an alias of itself.
func (r *Registry) Register(canonical string, aliases ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}

	canonical = normalize(canonical)
	if canonical == "" {
		return ErrRoleNameEmpty
	}

	names := append([]string{canonical}, aliases...)
	for _, name := range names {
		key := normalize(name)
		if key == "" {
			return ErrRoleNameEmpty
		}
		if existing, ok := r.aliases[key]; ok && existing != canonical {
			return ErrAliasConflict
		}
	}
	for _, name := range names {
		r.aliases[normalize(name)] = canonical
	}
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Canonical returns the canonical name for role. Unknown roles are returned
// lower-cased and trimmed so that they still compare case-insensitively.
func (r *Registry) Canonical(role string) string {
	key := normalize(role)
	if r == nil {
		return key
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[key]; ok {
		return canonical
	}
	return key
}

// Known reports whether role is a registered alias.
func (r *Registry) Known(role string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.aliases[normalize(role)]
	return ok
}

// Matches reports whether have satisfies want. An empty have never matches.
func (r *Registry) Matches(have, want string) bool {
	h := r.Canonical(have)
	if h == "" {
		return false
	}
	return h == r.Canonical(want)
}

func normalize(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
