package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedadmin/schedadmin/internal/backend/backendtest"
	"github.com/schedadmin/schedadmin/internal/config"
	"github.com/schedadmin/schedadmin/internal/models"
)

const cookieName = "sid"

var (
	admin = backendtest.Account{
		ID: "u-1", Name: "Ada Admin", Email: "admin@example.edu", Password: "adminpass",
		Role: "Admin", Verified: true,
	}
	head = backendtest.Account{
		ID: "u-2", Name: "Hal Head", Email: "head@example.edu", Password: "headpass",
		Role: "Program Head", DepartmentID: "cs", Verified: true,
	}
	secretary = backendtest.Account{
		ID: "u-3", Name: "Sam Secretary", Email: "sec@example.edu", Password: "secpass",
		Role: "Department Secretary", DepartmentID: "cs", Verified: true,
	}
	newcomer = backendtest.Account{
		ID: "u-4", Name: "Nia New", Email: "new@example.edu", Password: "newpass",
		Role: "Program Head", DepartmentID: "math", Verified: false,
	}
)

type harness struct {
	t       *testing.T
	srv     *Server
	backend *backendtest.Backend
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	fake := backendtest.New(t, admin, head, secretary, newcomer)
	cfg := &config.Config{
		Server:   config.ServerConfig{Address: ":0"},
		Backend:  config.BackendConfig{URL: fake.URL, Timeout: 2 * time.Second},
		Session:  config.SessionConfig{TTL: time.Hour, CookieName: cookieName, ResolveTimeout: 2 * time.Second},
		Database: config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "test.sqlite")},
		Logging:  config.LoggingConfig{Level: "error", Format: "json"},
	}

	srv, err := New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return &harness{t: t, srv: srv, backend: fake}
}

func (h *harness) do(method, target string, form url.Values, cookies []*http.Cookie, header ...string) *httptest.ResponseRecorder {
	h.t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func (h *harness) get(target string, cookies []*http.Cookie, header ...string) *httptest.ResponseRecorder {
	return h.do(http.MethodGet, target, nil, cookies, header...)
}

func (h *harness) post(target string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return h.do(http.MethodPost, target, form, cookies)
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

// login signs acct in and returns the session cookie
func (h *harness) login(acct backendtest.Account) []*http.Cookie {
	h.t.Helper()
	rec := h.post("/login", url.Values{"email": {acct.Email}, "password": {acct.Password}}, nil)
	require.Equal(h.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	c := sessionCookie(rec)
	require.NotNil(h.t, c)
	return []*http.Cookie{c}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"online"`)
}

func TestLogin_SetsHardenedCookie(t *testing.T) {
	h := newHarness(t)

	rec := h.post("/login", url.Values{"email": {admin.Email}, "password": {admin.Password}}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)

	rec := h.post("/login", url.Values{"email": {admin.Email}, "password": {"nope"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")
	assert.Nil(t, sessionCookie(rec))
}

func TestLogin_FormValidation(t *testing.T) {
	h := newHarness(t)

	rec := h.post("/login", url.Values{"email": {"not-an-email"}, "password": {"x"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Enter a valid email address.")
}

func TestSignedOut_RedirectsToLoginAndBack(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/roomlist", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Froomlist", rec.Header().Get("Location"))

	rec = h.post("/login", url.Values{
		"email":    {head.Email},
		"password": {head.Password},
		"next":     {"/roomlist"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/roomlist", rec.Header().Get("Location"))
}

func TestLogin_IgnoresForeignNext(t *testing.T) {
	h := newHarness(t)

	rec := h.post("/login", url.Values{
		"email":    {head.Email},
		"password": {head.Password},
		"next":     {"https://evil.example/phish"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestDashboard_ShowsRoleNavigation(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/dashboard", h.login(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="/accountlist"`)
	assert.NotContains(t, body, `href="/assignation"`)
	assert.NotContains(t, body, `href="/jobs"`, "job console is hidden without redis")

	rec = h.get("/dashboard", h.login(secretary))
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.NotContains(t, body, `href="/accountlist"`)
	assert.Contains(t, body, `href="/courseprog"`)
}

func TestRoleMatrix(t *testing.T) {
	h := newHarness(t)
	cookies := map[string][]*http.Cookie{
		"Admin":                h.login(admin),
		"Program Head":         h.login(head),
		"Department Secretary": h.login(secretary),
	}

	cases := []struct {
		path    string
		allowed []string
	}{
		{"/accountlist", []string{"Admin"}},
		{"/roomlist", []string{"Admin", "Program Head"}},
		{"/courselist", []string{"Admin", "Program Head"}},
		{"/professorlist", []string{"Admin", "Program Head", "Department Secretary"}},
		{"/addprofessor", []string{"Admin", "Department Secretary"}},
		{"/courseprog", []string{"Program Head", "Department Secretary"}},
		{"/availability", []string{"Program Head", "Department Secretary"}},
		{"/assignation", []string{"Program Head"}},
		{"/timetable/room", []string{"Admin", "Program Head", "Department Secretary"}},
	}
	for _, tc := range cases {
		for role, c := range cookies {
			rec := h.get(tc.path, c)
			allowed := false
			for _, r := range tc.allowed {
				if r == role {
					allowed = true
				}
			}
			if allowed {
				assert.Equal(t, http.StatusOK, rec.Code, "%s as %s", tc.path, role)
			} else {
				assert.Equal(t, http.StatusFound, rec.Code, "%s as %s", tc.path, role)
				assert.Equal(t, "/403", rec.Header().Get("Location"), "%s as %s", tc.path, role)
			}
		}
	}
}

func TestForbidden_IsRecorded(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/accountlist", h.login(secretary))
	require.Equal(t, http.StatusFound, rec.Code)

	var events []models.AccessEvent
	require.NoError(t, h.srv.GetDB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "forbidden", events[0].Outcome)
	assert.Equal(t, "u-3", events[0].UserID)
	assert.Equal(t, "/accountlist", events[0].Path)

	rec = h.get("/403", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// admins see it on the dashboard
	rec = h.get("/dashboard", h.login(admin))
	assert.Contains(t, rec.Body.String(), "Recently denied requests")
}

func TestPathNormalization(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(admin)

	rec := h.get("/AccountList/", cookies)
	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/accountlist", rec.Header().Get("Location"))

	// same classification for a signed-out visitor
	rec = h.get("/AccountList", nil)
	assert.Contains(t, []int{http.StatusMovedPermanently, http.StatusFound}, rec.Code)
}

func TestVerificationFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.post("/login", url.Values{
		"email":    {newcomer.Email},
		"password": {newcomer.Password},
		"next":     {"/courseprog"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/verify?next=%2Fcourseprog", rec.Header().Get("Location"))
	cookies := []*http.Cookie{sessionCookie(rec)}

	// every protected page sends an unverified user to the verification page
	for _, path := range []string{"/dashboard", "/profile", "/assignation", "/accountlist"} {
		rec = h.get(path, cookies)
		require.Equal(t, http.StatusFound, rec.Code, path)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/verify"), path)
	}

	rec = h.get("/verify", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), newcomer.Email)

	rec = h.post("/verify", url.Values{"code": {"12ab"}}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.post("/verify", url.Values{"code": {"000000"}}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid code")

	rec = h.post("/verify/resend", url.Values{}, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A new code was sent")

	rec = h.post("/verify", url.Values{"code": {backendtest.OTP}, "next": {"/courseprog"}}, cookies)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/courseprog", rec.Header().Get("Location"))

	rec = h.get("/courseprog", cookies)
	assert.Equal(t, http.StatusOK, rec.Code)

	// verified users skip the verification page
	rec = h.get("/verify", cookies)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestLogout_RevokesCookie(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(head)

	rec := h.post("/logout", nil, cookies)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	// replaying the old cookie does not bring the session back
	rec = h.get("/dashboard", cookies)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/login"))
}

func TestTamperedCookie(t *testing.T) {
	h := newHarness(t)
	c := h.login(admin)[0]

	forged := *c
	forged.Value = c.Value[:len(c.Value)-2] + "xx"
	rec := h.get("/dashboard", []*http.Cookie{&forged})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fdashboard", rec.Header().Get("Location"))
}

func TestBackendRejectsToken_ClearsSession(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(admin)

	h.backend.ExpireTokens()

	rec := h.get("/dashboard", cookies)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fdashboard", rec.Header().Get("Location"))
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestBackendDown_FailsClosed(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(admin)

	h.backend.Close()

	rec := h.get("/accountlist", cookies)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Faccountlist", rec.Header().Get("Location"))
	assert.Nil(t, sessionCookie(rec), "a transport failure keeps the credential")
}

func TestSessionAPI(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/api/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.get("/api/session", h.login(head), "Origin", "http://localhost:5173")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	var body struct {
		Successful bool `json:"successful"`
		Data       struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Successful)
	assert.Equal(t, "u-2", body.Data.UserID)
	assert.Equal(t, "Program Head", body.Data.Role)
}

func TestRooms_CreateListDelete(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(head)

	rec := h.get("/addroom", cookies)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.post("/addroom", url.Values{
		"code": {"B-101"}, "building": {"Main"}, "capacity": {"many"}, "type": {"Lecture"},
	}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "The capacity must be a number.")
	assert.Empty(t, h.backend.Records("rooms"))

	rec = h.post("/addroom", url.Values{
		"code": {"B 101"}, "building": {"Main"}, "capacity": {"40"}, "type": {"Lecture"},
	}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.post("/addroom", url.Values{
		"code": {"B-101"}, "building": {"Main"}, "capacity": {"40"}, "type": {"Lecture"},
	}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Created")

	rooms := h.backend.Records("rooms")
	require.Len(t, rooms, 1)
	assert.EqualValues(t, 40, rooms[0]["capacity"])

	rec = h.get("/roomlist", cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "B-101")
	assert.Contains(t, rec.Body.String(), `href="/addroom"`)

	rec = h.post("/roomlist/delete", url.Values{"id": {rooms[0]["id"].(string)}}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Deleted")
	assert.Empty(t, h.backend.Records("rooms"))
}

func TestProfessorList_HidesAddForHeads(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/professorlist", h.login(head))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `href="/addprofessor"`)

	rec = h.get("/professorlist", h.login(secretary))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/addprofessor"`)
}

func TestBackendErrorBanner(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(admin)

	rec := h.post("/roomlist/delete", url.Values{"id": {"missing"}}, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Record not found")
}

func TestAssignation_Generate(t *testing.T) {
	h := newHarness(t)

	rec := h.post("/assignation/generate", url.Values{}, h.login(head))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Assignations generated")
}

func TestTimetable(t *testing.T) {
	h := newHarness(t)
	h.backend.Seed("schedules",
		map[string]any{"view": "section", "day": "Monday", "start": "08:00", "end": "09:30", "course_code": "CS101", "section": "A"},
		map[string]any{"view": "room", "day": "Tuesday", "course_code": "CS202"},
	)

	rec := h.get("/timetable/section", h.login(secretary))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CS101")
	assert.NotContains(t, rec.Body.String(), "CS202")
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(secretary)

	rec := h.post("/changepassword", url.Values{
		"current": {secretary.Password}, "password": {"longenough"}, "confirm": {"different1"},
	}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "The passwords do not match.")

	rec = h.post("/changepassword", url.Values{
		"current": {secretary.Password}, "password": {"longenough"}, "confirm": {"longenough"},
	}, cookies)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Password changed")
}

func TestPasswordReset(t *testing.T) {
	h := newHarness(t)

	rec := h.post("/forgotpassword", url.Values{"email": {head.Email}}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reset link was sent")

	rec = h.get("/resetpassword?token=reset-ok", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.post("/resetpassword", url.Values{
		"token": {"stale"}, "password": {"longenough"}, "confirm": {"longenough"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Reset link expired")

	rec = h.post("/resetpassword", url.Values{
		"token": {"reset-ok"}, "password": {"longenough"}, "confirm": {"longenough"},
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Password updated")
}

func TestUnknownPath(t *testing.T) {
	h := newHarness(t)

	rec := h.get("/no-such-page", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fno-such-page", rec.Header().Get("Location"))

	rec = h.get("/no-such-page", h.login(secretary))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecretPersistsAcrossRestarts(t *testing.T) {
	h := newHarness(t)
	cookies := h.login(admin)

	// a second server on the same database accepts the cookie
	again, err := New(h.srv.config, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Close() })

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	again.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
