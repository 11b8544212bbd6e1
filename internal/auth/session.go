package auth

import (
	"fmt"
	"strings"
)

// Role is the account role assigned by the backend
type Role string

const (
	RoleAdmin               Role = "Admin"
	RoleProgramHead         Role = "Program Head"
	RoleDepartmentSecretary Role = "Department Secretary"
)

// Roles lists every known role in display order
var Roles = []Role{RoleAdmin, RoleProgramHead, RoleDepartmentSecretary}

// ParseRole accepts the backend spelling as well as snake/kebab variants
// ("program_head", "department-secretary").
func ParseRole(s string) (Role, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	for _, r := range Roles {
		if strings.ToLower(string(r)) == norm {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Session represents the authenticated user for the current request (web)
// or process (CLI)
type Session struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id"`
	Verified     bool   `json:"verified"`
}

// HasRole reports whether the session role is one of roles
func (s *Session) HasRole(roles ...Role) bool {
	if s == nil {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}
