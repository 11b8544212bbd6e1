// Package routes holds the static route table and the access policy of every page.
//
// Paths are matched after Normalize, so "/AccountList/" and "/accountlist" are the
// same route. Paths that are not in the table are treated as open to any
// authenticated role.
package routes

import (
	"fmt"
	"strings"

	"github.com/schedadmin/schedadmin/internal/auth"
)

// Route identifies a page of the admin UI
type Route int

const (
	Login Route = iota
	ForgotPassword
	ResetPassword
	Forbidden
	Verify
	Dashboard
	Profile
	ChangePassword
	AccountList
	CreateAccount
	RoomList
	AddRoom
	CourseList
	AddCourse
	ProfessorList
	AddProfessor
	CourseProg
	Availability
	Assignation
	RoomTimetable
	ProfessorTimetable
	SectionTimetable
	SessionAPI
	Jobs

	routeCount
)

// Entry is one row of the route table
type Entry struct {
	Path   string
	Title  string
	Policy Policy
	// Nav marks pages linked from the dashboard navigation
	Nav bool
}

var (
	adminOnly      = Policy{Access: Protected, Only: []auth.Role{auth.RoleAdmin}}
	headOnly       = Policy{Access: Protected, Only: []auth.Role{auth.RoleProgramHead}}
	adminAndHead   = Policy{Access: Protected, Allow: []auth.Role{auth.RoleAdmin, auth.RoleProgramHead}}
	notAdmin       = Policy{Access: Protected, Deny: []auth.Role{auth.RoleAdmin}}
	notHead        = Policy{Access: Protected, Deny: []auth.Role{auth.RoleProgramHead}}
	authenticated  = Policy{Access: Protected}
	public         = Policy{Access: Public}
	verificationOK = Policy{Access: Verification}
)

var table = [...]Entry{
	Login:              {Path: "/login", Title: "Login", Policy: public},
	ForgotPassword:     {Path: "/forgotpassword", Title: "Forgot password", Policy: public},
	ResetPassword:      {Path: "/resetpassword", Title: "Reset password", Policy: public},
	Forbidden:          {Path: "/403", Title: "Access denied", Policy: public},
	Verify:             {Path: "/verify", Title: "Verify account", Policy: verificationOK},
	Dashboard:          {Path: "/dashboard", Title: "Dashboard", Policy: authenticated},
	Profile:            {Path: "/profile", Title: "Profile", Policy: authenticated, Nav: true},
	ChangePassword:     {Path: "/changepassword", Title: "Change password", Policy: authenticated},
	AccountList:        {Path: "/accountlist", Title: "Accounts", Policy: adminOnly, Nav: true},
	CreateAccount:      {Path: "/createaccount", Title: "Create account", Policy: adminOnly},
	RoomList:           {Path: "/roomlist", Title: "Rooms", Policy: adminAndHead, Nav: true},
	AddRoom:            {Path: "/addroom", Title: "Add room", Policy: adminAndHead},
	CourseList:         {Path: "/courselist", Title: "Courses", Policy: adminAndHead, Nav: true},
	AddCourse:          {Path: "/addcourse", Title: "Add course", Policy: adminAndHead},
	ProfessorList:      {Path: "/professorlist", Title: "Professors", Policy: authenticated, Nav: true},
	AddProfessor:       {Path: "/addprofessor", Title: "Add professor", Policy: notHead},
	CourseProg:         {Path: "/courseprog", Title: "Course programming", Policy: notAdmin, Nav: true},
	Availability:       {Path: "/availability", Title: "Professor availability", Policy: notAdmin, Nav: true},
	Assignation:        {Path: "/assignation", Title: "Assignations", Policy: headOnly, Nav: true},
	RoomTimetable:      {Path: "/timetable/room", Title: "Room timetable", Policy: authenticated, Nav: true},
	ProfessorTimetable: {Path: "/timetable/professor", Title: "Professor timetable", Policy: authenticated, Nav: true},
	SectionTimetable:   {Path: "/timetable/section", Title: "Section timetable", Policy: authenticated, Nav: true},
	SessionAPI:         {Path: "/api/session", Title: "Session", Policy: authenticated},
	Jobs:               {Path: "/jobs", Title: "Background jobs", Policy: adminOnly, Nav: true},
}

// The table must have exactly one entry per Route.
var (
	_ [len(table) - int(routeCount)]struct{}
	_ [int(routeCount) - len(table)]struct{}
)

var byPath map[string]Route

func init() {
	if err := buildIndex(); err != nil {
		panic(err)
	}
}

func buildIndex() error {
	idx := make(map[string]Route, len(table))
	for i, e := range table {
		r := Route(i)
		if e.Path == "" {
			return fmt.Errorf("routes: %d has no path", i)
		}
		if Normalize(e.Path) != e.Path {
			return fmt.Errorf("routes: path %q of %s is not normalized", e.Path, e.Title)
		}
		if prev, dup := idx[e.Path]; dup {
			return fmt.Errorf("routes: path %q used by both %s and %s", e.Path, table[prev].Title, e.Title)
		}
		idx[e.Path] = r
	}
	byPath = idx
	return nil
}

// Normalize lower-cases the path and strips trailing slashes. The empty path
// becomes "/".
func Normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(strings.TrimSpace(path))
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// Lookup classifies a request path
func Lookup(path string) (Route, bool) {
	r, ok := byPath[Normalize(path)]
	return r, ok
}

// All returns every route in declaration order
func All() []Route {
	out := make([]Route, routeCount)
	for i := range out {
		out[i] = Route(i)
	}
	return out
}

// Visible returns the navigation routes the role is allowed to open
func Visible(role auth.Role) []Route {
	var out []Route
	for i, e := range table {
		if e.Nav && e.Policy.Permits(role) {
			out = append(out, Route(i))
		}
	}
	return out
}

func (r Route) entry() Entry {
	if r < 0 || r >= routeCount {
		return Entry{}
	}
	return table[r]
}

func (r Route) Path() string   { return r.entry().Path }
func (r Route) Title() string  { return r.entry().Title }
func (r Route) Policy() Policy { return r.entry().Policy }

func (r Route) String() string {
	if e := r.entry(); e.Path != "" {
		return e.Path
	}
	return fmt.Sprintf("Route(%d)", int(r))
}
