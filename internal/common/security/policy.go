package security

import (
	"fmt"

	"foundation_portal/internal/domain/model"
)

// Policy decides whether a session role may perform an action. The two constructors
// are deliberately distinct: exact match and hierarchy are different rules.
type Policy struct {
	name   string
	allows func(model.Role) bool
}

// ExactRole admits only role itself, regardless of hierarchy.
func ExactRole(role model.Role) Policy {
	return Policy{
		name:   fmt.Sprintf("exactRole(%s)", role),
		allows: func(actual model.Role) bool { return actual.Valid() && actual == role },
	}
}

// AtLeastRole admits role and everything above it.
func AtLeastRole(role model.Role) Policy {
	return Policy{
		name:   fmt.Sprintf("atLeastRole(%s)", role),
		allows: func(actual model.Role) bool { return model.HasPermission(actual, role) },
	}
}

func (p Policy) Allows(role model.Role) bool {
	return p.allows != nil && p.allows(role)
}

func (p Policy) String() string {
	return p.name
}

// Named policies used by the router.
var (
	ManageTasks     = ExactRole(model.RoleAdmin)
	VoteOnExpenses  = ExactRole(model.RoleAdmin)
	ManageUsers     = ExactRole(model.RoleAdmin)
	ViewAdminReport = AtLeastRole(model.RoleModerator)
)

// Permissions is the capability set shown to clients for a role.
type Permissions struct {
	CanCreateContent bool `json:"can_create_content"`
	CanEditContent   bool `json:"can_edit_content"`
	CanDeleteContent bool `json:"can_delete_content"`
	CanManageUsers   bool `json:"can_manage_users"`
	CanViewAnalytics bool `json:"can_view_analytics"`
	CanAccessAdmin   bool `json:"can_access_admin"`
}

func PermissionsFor(role model.Role) Permissions {
	switch role {
	case model.RoleAdmin:
		return Permissions{
			CanCreateContent: true,
			CanEditContent:   true,
			CanDeleteContent: true,
			CanManageUsers:   true,
			CanViewAnalytics: true,
			CanAccessAdmin:   true,
		}
	case model.RoleEditor:
		return Permissions{CanCreateContent: true, CanEditContent: true, CanViewAnalytics: true}
	case model.RoleModerator:
		return Permissions{CanAccessAdmin: true}
	case model.RoleUser:
		return Permissions{}
	default:
		return Permissions{}
	}
}
