package models

// Role is the closed set of account roles. Each role carries its own
// profile shape: admins have none, teachers link to a Teacher profile,
// students link to a Student profile. Resolution is always done by
// switching on the typed constant, never by comparing raw strings from
// the request.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole maps an input string onto the closed role set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return Role(s), true
	default:
		return "", false
	}
}

func (r Role) String() string { return string(r) }
