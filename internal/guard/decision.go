// Package guard decides whether a page may render for the current session.
package guard

import (
	"net/url"
	"strings"

	"github.com/schedadmin/schedadmin/internal/identity"
	"github.com/schedadmin/schedadmin/internal/routes"
)

// State is the outcome of evaluating a route for a session
type State int

const (
	Loading State = iota
	Unauthenticated
	UnverifiedUser
	Authorized
	Forbidden
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case UnverifiedUser:
		return "unverified"
	case Authorized:
		return "authorized"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decision is the result of Evaluate
type Decision struct {
	State State
	Route routes.Route
	// Known is false for paths missing from the route table
	Known bool
	// Redirect is set for Unauthenticated, UnverifiedUser and Forbidden
	Redirect string
}

// EvaluatePath classifies path and evaluates it
func EvaluatePath(snap identity.Snapshot, path string) Decision {
	route, known := routes.Lookup(path)
	return Evaluate(snap, route, known, path)
}

// Evaluate runs the guard state machine. requested is the original request URI
// and is carried through the login and verification redirects.
func Evaluate(snap identity.Snapshot, route routes.Route, known bool, requested string) Decision {
	d := Decision{Route: route, Known: known}

	policy := routes.Policy{Access: routes.Protected}
	if known {
		policy = route.Policy()
	}

	if policy.Access == routes.Public {
		d.State = Authorized
		return d
	}

	if snap.State == identity.StateLoading {
		d.State = Loading
		return d
	}

	session := snap.Session
	if snap.State != identity.StateAuthenticated || session == nil {
		d.State = Unauthenticated
		d.Redirect = withNext(routes.Login.Path(), requested)
		return d
	}

	if !session.Verified && policy.Access != routes.Verification {
		d.State = UnverifiedUser
		d.Redirect = withNext(routes.Verify.Path(), requested)
		return d
	}

	if !policy.Permits(session.Role) {
		d.State = Forbidden
		d.Redirect = routes.Forbidden.Path()
		return d
	}

	d.State = Authorized
	return d
}

func withNext(target, requested string) string {
	next := SafeNext(requested)
	if next == "" {
		return target
	}
	return target + "?next=" + url.QueryEscape(next)
}

// SafeNext returns requested when it is a local, non-public page worth returning
// to after login, and "" otherwise
func SafeNext(requested string) string {
	if requested == "" || !strings.HasPrefix(requested, "/") {
		return ""
	}
	if strings.HasPrefix(requested, "//") || strings.HasPrefix(requested, "/\\") {
		return ""
	}
	if strings.ContainsAny(requested, "\r\n") {
		return ""
	}
	u, err := url.Parse(requested)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	if r, ok := routes.Lookup(u.Path); ok {
		if r.Policy().Access != routes.Protected {
			return ""
		}
	}
	if routes.Normalize(u.Path) == "/" {
		return ""
	}
	return requested
}
