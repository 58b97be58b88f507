package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner      = "owner"
	RoleManager    = "manager"
	RoleAnalyst    = "analyst"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsKnownRole reports whether tokens may be issued for role.
func IsKnownRole(role string) bool {
	switch role {
	case RoleOwner, RoleManager, RoleAnalyst, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// Writers may change fee structures, products and saved calculations.
var Writers = []string{RoleOwner, RoleManager}

// Readers may compute prices and read everything in their tenant.
var Readers = []string{RoleOwner, RoleManager, RoleAnalyst}
