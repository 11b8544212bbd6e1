package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/schedadmin/schedadmin/internal/auth"
	"github.com/schedadmin/schedadmin/internal/backend"
	"github.com/schedadmin/schedadmin/internal/guard"
	"github.com/schedadmin/schedadmin/internal/routes"
)

const recentDenials = 20

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// field is one input of a resource form. Rules are validator tags applied to
// the submitted text; IntRules apply to the parsed value of number fields.
type field struct {
	Name     string
	Label    string
	Type     string // text, email, number, time, select
	Options  []string
	Rules    string
	IntRules string
}

// column is one table column
type column struct {
	Key   string
	Label string
}

// resourcePage binds a backend collection to its list and form routes. When
// add equals list the form is rendered inline above the table.
type resourcePage struct {
	list      routes.Route
	add       routes.Route
	resource  backend.Resource
	columns   []column
	fields    []field
	deletable bool
	generate  bool
}

func roleNames() []string {
	names := make([]string, 0, len(auth.Roles))
	for _, r := range auth.Roles {
		names = append(names, string(r))
	}
	return names
}

var resourcePages = []resourcePage{
	{
		list:     routes.AccountList,
		add:      routes.CreateAccount,
		resource: backend.Accounts,
		columns: []column{
			{"name", "Name"}, {"email", "Email"}, {"role", "Role"}, {"department_id", "Department"}, {"verified", "Verified"},
		},
		fields: []field{
			{Name: "name", Label: "Name", Type: "text", Rules: "required,max=120"},
			{Name: "email", Label: "Email", Type: "email", Rules: "required,email"},
			{Name: "role", Label: "Role", Type: "select", Options: roleNames(), Rules: "required,oneof='Admin' 'Program Head' 'Department Secretary'"},
			{Name: "department_id", Label: "Department", Type: "text", Rules: "omitempty,slug"},
		},
		deletable: true,
	},
	{
		list:     routes.RoomList,
		add:      routes.AddRoom,
		resource: backend.Rooms,
		columns: []column{
			{"code", "Code"}, {"building", "Building"}, {"capacity", "Capacity"}, {"type", "Type"},
		},
		fields: []field{
			{Name: "code", Label: "Code", Type: "text", Rules: "required,slug,max=20"},
			{Name: "building", Label: "Building", Type: "text", Rules: "required,max=80"},
			{Name: "capacity", Label: "Capacity", Type: "number", Rules: "required,number", IntRules: "min=1"},
			{Name: "type", Label: "Type", Type: "select", Options: []string{"Lecture", "Laboratory"}, Rules: "required,oneof=Lecture Laboratory"},
		},
		deletable: true,
	},
	{
		list:     routes.CourseList,
		add:      routes.AddCourse,
		resource: backend.Courses,
		columns: []column{
			{"code", "Code"}, {"title", "Title"}, {"units", "Units"}, {"program", "Program"},
		},
		fields: []field{
			{Name: "code", Label: "Code", Type: "text", Rules: "required,slug,max=20"},
			{Name: "title", Label: "Title", Type: "text", Rules: "required,max=160"},
			{Name: "units", Label: "Units", Type: "number", Rules: "required,number", IntRules: "min=1"},
			{Name: "program", Label: "Program", Type: "text", Rules: "required,max=80"},
		},
		deletable: true,
	},
	{
		list:     routes.ProfessorList,
		add:      routes.AddProfessor,
		resource: backend.Professors,
		columns: []column{
			{"name", "Name"}, {"email", "Email"}, {"department_id", "Department"}, {"max_load", "Max load"},
		},
		fields: []field{
			{Name: "name", Label: "Name", Type: "text", Rules: "required,max=120"},
			{Name: "email", Label: "Email", Type: "email", Rules: "required,email"},
			{Name: "department_id", Label: "Department", Type: "text", Rules: "required,slug"},
			{Name: "max_load", Label: "Max load (units)", Type: "number", Rules: "required,number", IntRules: "min=1"},
		},
	},
	{
		list:     routes.CourseProg,
		add:      routes.CourseProg,
		resource: backend.CourseOfferings,
		columns: []column{
			{"course_code", "Course"}, {"section", "Section"}, {"semester", "Semester"}, {"year", "Year"},
		},
		fields: []field{
			{Name: "course_code", Label: "Course", Type: "text", Rules: "required,slug"},
			{Name: "section", Label: "Section", Type: "text", Rules: "required,slug"},
			{Name: "semester", Label: "Semester", Type: "select", Options: []string{"1", "2", "Summer"}, Rules: "required,oneof=1 2 Summer"},
			{Name: "year", Label: "Year", Type: "number", Rules: "required,number,len=4", IntRules: "min=2000,max=2100"},
		},
		deletable: true,
	},
	{
		list:     routes.Availability,
		add:      routes.Availability,
		resource: backend.Availability,
		columns: []column{
			{"professor_id", "Professor"}, {"day", "Day"}, {"start", "From"}, {"end", "To"},
		},
		fields: []field{
			{Name: "professor_id", Label: "Professor", Type: "text", Rules: "required"},
			{Name: "day", Label: "Day", Type: "select", Options: weekdays, Rules: "required,oneof=Monday Tuesday Wednesday Thursday Friday Saturday"},
			{Name: "start", Label: "From", Type: "time", Rules: "required,datetime=15:04"},
			{Name: "end", Label: "To", Type: "time", Rules: "required,datetime=15:04"},
		},
		deletable: true,
	},
	{
		list:     routes.Assignation,
		add:      routes.Assignation,
		resource: backend.Assignations,
		columns: []column{
			{"course_code", "Course"}, {"section", "Section"}, {"professor", "Professor"}, {"room", "Room"}, {"schedule", "Schedule"},
		},
		generate: true,
	},
}

// fieldView is a field with its submitted value, for templates
type fieldView struct {
	Name     string
	Label    string
	Type     string
	Options  []string
	Value    string
	Required bool
}

type formData struct {
	Action string
	Back   string
	Fields []fieldView
}

type row struct {
	ID    string
	Cells []string
}

type listData struct {
	Columns      []string
	Rows         []row
	AddPath      string
	DeletePath   string
	GeneratePath string
	Form         *formData
}

func (rp resourcePage) inline() bool {
	return len(rp.fields) > 0 && rp.add == rp.list
}

func (rp resourcePage) form(values map[string]string) *formData {
	fd := &formData{Action: rp.add.Path()}
	if !rp.inline() {
		fd.Back = rp.list.Path()
	}
	for _, f := range rp.fields {
		fd.Fields = append(fd.Fields, fieldView{
			Name:     f.Name,
			Label:    f.Label,
			Type:     f.Type,
			Options:  f.Options,
			Value:    values[f.Name],
			Required: strings.HasPrefix(f.Rules, "required"),
		})
	}
	return fd
}

// sessionExpired handles a backend 401 on a call made for the user: the
// session is dropped and the browser sent back to the login page
func (s *Server) sessionExpired(c *gin.Context, p *guard.Principal, err error) bool {
	if !errors.Is(err, auth.ErrCredentialInvalid) {
		return false
	}
	ctx := c.Request.Context()
	if clearErr := p.Provider.ClearSession(ctx); clearErr != nil {
		s.logger.Warn().Err(clearErr).Msg("Failed to clear expired session")
	}
	target := routes.Login.Path()
	if next := guard.SafeNext(c.Request.URL.Path); next != "" && c.Request.Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(next)
	}
	c.Redirect(http.StatusSeeOther, target)
	return true
}

func (s *Server) dashboard(c *gin.Context, p *guard.Principal) {
	v := view{Title: routes.Dashboard.Title()}
	if p.Session.Role == auth.RoleAdmin {
		events, err := s.accessLog.Recent(c.Request.Context(), recentDenials)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to load access log")
		} else if len(events) > 0 {
			v.Data = events
		}
	}
	s.render(c, http.StatusOK, "dashboard.html", p, v)
}

func (s *Server) profile(c *gin.Context, p *guard.Principal) {
	s.render(c, http.StatusOK, "profile.html", p, view{Title: routes.Profile.Title()})
}

// loadList fetches the collection and builds the table
func (s *Server) loadList(c *gin.Context, p *guard.Principal, rp resourcePage) (*listData, error) {
	ctx := c.Request.Context()
	token, err := p.Token(ctx)
	if err != nil {
		return nil, err
	}

	records, err := s.backend.List(ctx, token, rp.resource, nil)
	if err != nil {
		return nil, err
	}

	data := &listData{}
	for _, col := range rp.columns {
		data.Columns = append(data.Columns, col.Label)
	}
	for _, rec := range records {
		r := row{ID: rec.ID()}
		for _, col := range rp.columns {
			r.Cells = append(r.Cells, rec.Field(col.Key))
		}
		data.Rows = append(data.Rows, r)
	}

	if rp.deletable {
		data.DeletePath = rp.list.Path() + "/delete"
	}
	if rp.generate {
		data.GeneratePath = rp.list.Path() + "/generate"
	}
	if len(rp.fields) > 0 && rp.add.Policy().Permits(p.Session.Role) {
		if rp.inline() {
			data.Form = rp.form(nil)
		} else {
			data.AddPath = rp.add.Path()
		}
	}
	return data, nil
}

// renderList renders the list page with a banner
func (s *Server) renderList(c *gin.Context, p *guard.Principal, rp resourcePage, status int, flash, errMsg string, values map[string]string) {
	v := view{Title: rp.list.Title(), Flash: flash, Error: errMsg}

	data, err := s.loadList(c, p, rp)
	if err != nil {
		if s.sessionExpired(c, p, err) {
			return
		}
		s.logger.Warn().Err(err).Str("resource", string(rp.resource)).Msg("Failed to load list")
		if v.Error == "" {
			v.Error = backend.Message(err, unavailableMessage)
			status = backendStatus(err)
		}
		data = &listData{}
	}
	if data.Form != nil && values != nil {
		data.Form = rp.form(values)
	}
	v.Data = data
	s.render(c, status, "list.html", p, v)
}

func (s *Server) listPage(rp resourcePage) guard.PageHandler {
	return func(c *gin.Context, p *guard.Principal) {
		s.renderList(c, p, rp, http.StatusOK, "", "", nil)
	}
}

func (s *Server) formPage(rp resourcePage) guard.PageHandler {
	return func(c *gin.Context, p *guard.Principal) {
		s.render(c, http.StatusOK, "form.html", p, view{Title: rp.add.Title(), Data: rp.form(nil)})
	}
}

// readForm collects and validates the posted fields
func (s *Server) readForm(c *gin.Context, rp resourcePage) (map[string]string, map[string]any, error) {
	values := make(map[string]string, len(rp.fields))
	body := make(map[string]any, len(rp.fields))
	for _, f := range rp.fields {
		raw := strings.TrimSpace(c.PostForm(f.Name))
		values[f.Name] = raw

		if err := s.validator.Var(raw, f.Rules); err != nil {
			return values, nil, &fieldError{field: f, err: err}
		}
		if raw == "" {
			continue
		}
		if f.Type == "number" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return values, nil, &fieldError{field: f, err: err}
			}
			if f.IntRules != "" {
				if err := s.validator.Var(n, f.IntRules); err != nil {
					return values, nil, &fieldError{field: f, err: err}
				}
			}
			body[f.Name] = n
			continue
		}
		body[f.Name] = raw
	}
	return values, body, nil
}

type fieldError struct {
	field field
	err   error
}

func (e *fieldError) Error() string {
	return e.field.Label + ": " + e.err.Error()
}

func (e *fieldError) Message() string {
	var verrs validator.ValidationErrors
	if errors.As(e.err, &verrs) && len(verrs) > 0 {
		return fieldMessage(verrs[0], strings.ToLower(e.field.Label))
	}
	return fmt.Sprintf("The %s must be a whole number.", strings.ToLower(e.field.Label))
}

func (s *Server) createRecord(rp resourcePage) guard.PageHandler {
	return func(c *gin.Context, p *guard.Principal) {
		values, body, err := s.readForm(c, rp)
		if err != nil {
			msg := "The form could not be read."
			var fe *fieldError
			if errors.As(err, &fe) {
				msg = fe.Message()
			}
			s.renderForm(c, p, rp, http.StatusBadRequest, "", msg, values)
			return
		}

		ctx := c.Request.Context()
		token, err := p.Token(ctx)
		if err != nil {
			c.Redirect(http.StatusSeeOther, routes.Login.Path())
			return
		}

		msg, err := s.backend.Create(ctx, token, rp.resource, body)
		if err != nil {
			if s.sessionExpired(c, p, err) {
				return
			}
			s.renderForm(c, p, rp, backendStatus(err), "", backend.Message(err, unavailableMessage), values)
			return
		}

		s.logger.Info().
			Str("user_id", p.Session.UserID).
			Str("resource", string(rp.resource)).
			Msg("Record created")
		if msg == "" {
			msg = "Saved."
		}
		s.renderForm(c, p, rp, http.StatusOK, msg, "", nil)
	}
}

// renderForm shows the outcome of a create: inline forms re-render the list,
// standalone forms re-render themselves
func (s *Server) renderForm(c *gin.Context, p *guard.Principal, rp resourcePage, status int, flash, errMsg string, values map[string]string) {
	if rp.inline() {
		s.renderList(c, p, rp, status, flash, errMsg, values)
		return
	}
	s.render(c, status, "form.html", p, view{
		Title: rp.add.Title(),
		Flash: flash,
		Error: errMsg,
		Data:  rp.form(values),
	})
}

func (s *Server) deleteRecord(rp resourcePage) guard.PageHandler {
	return func(c *gin.Context, p *guard.Principal) {
		id := strings.TrimSpace(c.PostForm("id"))
		if id == "" {
			s.renderList(c, p, rp, http.StatusBadRequest, "", "Nothing was selected.", nil)
			return
		}

		ctx := c.Request.Context()
		token, err := p.Token(ctx)
		if err != nil {
			c.Redirect(http.StatusSeeOther, routes.Login.Path())
			return
		}

		msg, err := s.backend.Delete(ctx, token, rp.resource, id)
		if err != nil {
			if s.sessionExpired(c, p, err) {
				return
			}
			s.renderList(c, p, rp, backendStatus(err), "", backend.Message(err, unavailableMessage), nil)
			return
		}

		s.logger.Info().
			Str("user_id", p.Session.UserID).
			Str("resource", string(rp.resource)).
			Str("record_id", id).
			Msg("Record deleted")
		if msg == "" {
			msg = "Deleted."
		}
		s.renderList(c, p, rp, http.StatusOK, msg, "", nil)
	}
}

func (s *Server) generateAssignations(c *gin.Context, p *guard.Principal) {
	rp := resourcePageFor(routes.Assignation)

	ctx := c.Request.Context()
	token, err := p.Token(ctx)
	if err != nil {
		c.Redirect(http.StatusSeeOther, routes.Login.Path())
		return
	}

	msg, err := s.backend.GenerateAssignations(ctx, token)
	if err != nil {
		if s.sessionExpired(c, p, err) {
			return
		}
		s.renderList(c, p, rp, backendStatus(err), "", backend.Message(err, unavailableMessage), nil)
		return
	}
	if msg == "" {
		msg = "Assignations generated."
	}
	s.renderList(c, p, rp, http.StatusOK, msg, "", nil)
}

func resourcePageFor(r routes.Route) resourcePage {
	for _, rp := range resourcePages {
		if rp.list == r {
			return rp
		}
	}
	panic("no resource page for " + r.String())
}

// timetableView binds a schedule grouping to its page
type timetableView struct {
	route routes.Route
	view  backend.TimetableView
	label string
}

var timetableViews = []timetableView{
	{routes.RoomTimetable, backend.ViewRoom, "Room"},
	{routes.ProfessorTimetable, backend.ViewProfessor, "Professor"},
	{routes.SectionTimetable, backend.ViewSection, "Section"},
}

var timetableColumns = []column{
	{"day", "Day"}, {"start", "From"}, {"end", "To"}, {"course_code", "Course"},
	{"section", "Section"}, {"room", "Room"}, {"professor", "Professor"},
}

type timetableData struct {
	Action  string
	Label   string
	ID      string
	Columns []string
	Rows    []row
}

func (s *Server) timetable(tv timetableView) guard.PageHandler {
	return func(c *gin.Context, p *guard.Principal) {
		id := strings.TrimSpace(c.Query("id"))
		data := &timetableData{Action: tv.route.Path(), Label: tv.label, ID: id}
		for _, col := range timetableColumns {
			data.Columns = append(data.Columns, col.Label)
		}
		v := view{Title: tv.route.Title(), Data: data}

		ctx := c.Request.Context()
		token, err := p.Token(ctx)
		if err != nil {
			c.Redirect(http.StatusSeeOther, routes.Login.Path())
			return
		}

		entries, err := s.backend.Timetable(ctx, token, tv.view, id)
		if err != nil {
			if s.sessionExpired(c, p, err) {
				return
			}
			v.Error = backend.Message(err, unavailableMessage)
			s.render(c, backendStatus(err), "timetable.html", p, v)
			return
		}
		for _, e := range entries {
			r := row{ID: e.ID()}
			for _, col := range timetableColumns {
				r.Cells = append(r.Cells, e.Field(col.Key))
			}
			data.Rows = append(data.Rows, r)
		}
		s.render(c, http.StatusOK, "timetable.html", p, v)
	}
}

// @Summary Current session
// @Description Returns the session resolved from the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/session [get]
func (s *Server) getSession(c *gin.Context, p *guard.Principal) {
	c.JSON(http.StatusOK, gin.H{
		"successful": true,
		"data":       p.Session,
		"message":    "",
	})
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "schedadmin",
		"version":   s.version,
	})
}

// notFound runs behind guard.ByPath. Known pages reached through a
// non-canonical spelling are redirected to their canonical path.
func (s *Server) notFound(c *gin.Context) {
	if r, ok := routes.Lookup(c.Request.URL.Path); ok && r.Path() != c.Request.URL.Path {
		target := r.Path()
		if q := c.Request.URL.RawQuery; q != "" {
			target += "?" + q
		}
		c.Redirect(http.StatusMovedPermanently, target)
		return
	}
	p, _ := guard.PrincipalFrom(c)
	s.render(c, http.StatusNotFound, "notfound.html", p, view{Title: "Page not found"})
}
