package auth

import "github.com/aliskhannn/pix-erase/internal/model"

// Hierarchy maps a role to the set of roles it may manage. The relation is a
// strict partial order: no role manages itself and there are no cycles.
// Built once at startup and never mutated afterwards, so it is safe to share
// across goroutines without locking.
type Hierarchy map[model.Role][]model.Role

// DefaultHierarchy returns the standard role hierarchy:
// super_admin manages admins and annotators, admin manages annotators.
func DefaultHierarchy() Hierarchy {
	return Hierarchy{
		model.RoleSuperAdmin: {model.RoleAdmin, model.RoleAnnotator},
		model.RoleAdmin:      {model.RoleAnnotator},
		model.RoleAnnotator:  {},
	}
}

// Manages reports whether a subject with role r may manage the target role.
func (h Hierarchy) Manages(r, target model.Role) bool {
	for _, sub := range h[r] {
		if sub == target {
			return true
		}
	}
	return false
}
