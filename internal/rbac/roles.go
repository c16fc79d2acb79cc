package rbac

// Role names. Keep these stable; they are stored on user rows and carried in tokens.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

// IsValidRole reports whether role can be assigned to a user.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleEmployee
}
