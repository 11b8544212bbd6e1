package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedadmin/schedadmin/internal/auth"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"/accountlist":     "/accountlist",
		"/AccountList/":    "/accountlist",
		"/AccountList//":   "/accountlist",
		"":                 "/",
		"/":                "/",
		"dashboard":        "/dashboard",
		"/Timetable/Room/": "/timetable/room",
		"/roomlist?page=2": "/roomlist",
		"/roomlist#top":    "/roomlist",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestLookup_CaseAndSlashInsensitive(t *testing.T) {
	a, okA := Lookup("/AccountList/")
	b, okB := Lookup("/accountlist")
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, AccountList, a)
	assert.Equal(t, a, b)
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Lookup("/does-not-exist")
	assert.False(t, ok)
}

func TestTable_Complete(t *testing.T) {
	require.Len(t, All(), int(routeCount))
	require.NoError(t, buildIndex())

	seen := map[string]bool{}
	for _, r := range All() {
		assert.NotEmpty(t, r.Path(), "route %d has no path", int(r))
		assert.NotEmpty(t, r.Title(), "route %s has no title", r)
		assert.False(t, seen[r.Path()], "duplicate path %s", r.Path())
		seen[r.Path()] = true

		got, ok := Lookup(r.Path())
		assert.True(t, ok)
		assert.Equal(t, r, got)
	}
}

func TestPolicy_Precedence(t *testing.T) {
	// Only decides before Allow, Allow before Deny
	p := Policy{
		Only:  []auth.Role{auth.RoleAdmin},
		Allow: []auth.Role{auth.RoleProgramHead},
		Deny:  []auth.Role{auth.RoleAdmin},
	}
	assert.True(t, p.Permits(auth.RoleAdmin))
	assert.False(t, p.Permits(auth.RoleProgramHead))

	p = Policy{
		Allow: []auth.Role{auth.RoleAdmin, auth.RoleProgramHead},
		Deny:  []auth.Role{auth.RoleProgramHead},
	}
	assert.True(t, p.Permits(auth.RoleProgramHead))
	assert.False(t, p.Permits(auth.RoleDepartmentSecretary))

	p = Policy{Deny: []auth.Role{auth.RoleAdmin}}
	assert.False(t, p.Permits(auth.RoleAdmin))
	assert.True(t, p.Permits(auth.RoleDepartmentSecretary))

	assert.True(t, Policy{}.Permits(auth.RoleDepartmentSecretary))
}

func TestPolicy_NonProtectedAdmitsEveryone(t *testing.T) {
	for _, role := range auth.Roles {
		assert.True(t, Login.Policy().Permits(role))
		assert.True(t, Verify.Policy().Permits(role))
	}
}

func TestTablePolicies(t *testing.T) {
	tests := []struct {
		route Route
		role  auth.Role
		want  bool
	}{
		{AccountList, auth.RoleAdmin, true},
		{AccountList, auth.RoleDepartmentSecretary, false},
		{AccountList, auth.RoleProgramHead, false},
		{CourseProg, auth.RoleAdmin, false},
		{CourseProg, auth.RoleProgramHead, true},
		{CourseProg, auth.RoleDepartmentSecretary, true},
		{RoomList, auth.RoleProgramHead, true},
		{RoomList, auth.RoleDepartmentSecretary, false},
		{AddProfessor, auth.RoleProgramHead, false},
		{AddProfessor, auth.RoleDepartmentSecretary, true},
		{Assignation, auth.RoleProgramHead, true},
		{Assignation, auth.RoleAdmin, false},
		{Jobs, auth.RoleAdmin, true},
		{Jobs, auth.RoleProgramHead, false},
		{SectionTimetable, auth.RoleDepartmentSecretary, true},
	}
	for _, tt := range tests {
		t.Run(tt.route.String()+"/"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.route.Policy().Permits(tt.role))
		})
	}
}

func TestVisible(t *testing.T) {
	admin := Visible(auth.RoleAdmin)
	assert.Contains(t, admin, AccountList)
	assert.Contains(t, admin, Jobs)
	assert.NotContains(t, admin, CourseProg)
	assert.NotContains(t, admin, Login)

	head := Visible(auth.RoleProgramHead)
	assert.Contains(t, head, Assignation)
	assert.NotContains(t, head, AccountList)
}

func TestPolicy_Describe(t *testing.T) {
	assert.Equal(t, "Admin only", AccountList.Policy().Describe())
	assert.Equal(t, "all except Admin", CourseProg.Policy().Describe())
	assert.Equal(t, "Admin, Program Head", RoomList.Policy().Describe())
	assert.Equal(t, "any authenticated", Dashboard.Policy().Describe())
	assert.Equal(t, "public", Login.Policy().Describe())
}

func TestRoute_StringOutOfRange(t *testing.T) {
	assert.Equal(t, "Route(99)", Route(99).String())
	assert.Equal(t, "", Route(-1).Path())
}
