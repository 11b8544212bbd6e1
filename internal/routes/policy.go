package routes

import (
	"slices"

	"github.com/schedadmin/schedadmin/internal/auth"
)

// Access is the coarse classification of a route
type Access int

const (
	// Protected routes need a verified session
	Protected Access = iota
	// Public routes render without a session
	Public
	// Verification routes need a session but not a verified one
	Verification
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Verification:
		return "verification"
	default:
		return "protected"
	}
}

// Policy decides which roles may open a protected route.
//
// Buckets are checked in order Only, Allow, Deny and the first non-empty one
// decides. A policy with no buckets admits every authenticated role.
type Policy struct {
	Access Access
	Only   []auth.Role
	Allow  []auth.Role
	Deny   []auth.Role
}

// Permits reports whether role may open the route. Public and verification
// routes admit everyone.
func (p Policy) Permits(role auth.Role) bool {
	if p.Access != Protected {
		return true
	}
	switch {
	case len(p.Only) > 0:
		return slices.Contains(p.Only, role)
	case len(p.Allow) > 0:
		return slices.Contains(p.Allow, role)
	case len(p.Deny) > 0:
		return !slices.Contains(p.Deny, role)
	default:
		return true
	}
}

// Describe renders the policy for listings ("Admin only", "all except Admin")
func (p Policy) Describe() string {
	switch {
	case p.Access != Protected:
		return p.Access.String()
	case len(p.Only) > 0:
		return joinRoles(p.Only) + " only"
	case len(p.Allow) > 0:
		return joinRoles(p.Allow)
	case len(p.Deny) > 0:
		return "all except " + joinRoles(p.Deny)
	default:
		return "any authenticated"
	}
}

func joinRoles(roles []auth.Role) string {
	s := ""
	for i, r := range roles {
		if i > 0 {
			s += ", "
		}
		s += string(r)
	}
	return s
}
