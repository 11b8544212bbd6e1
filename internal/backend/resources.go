package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Resource names a backend collection
type Resource string

const (
	Accounts        Resource = "accounts"
	Rooms           Resource = "rooms"
	Professors      Resource = "professors"
	Courses         Resource = "courses"
	CourseOfferings Resource = "course-offerings"
	Availability    Resource = "availability"
	Assignations    Resource = "assignations"
)

// Record is one row of a collection; the admin UI renders columns by name
type Record map[string]any

// ID returns the record identifier as a string
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Field formats a column for display
func (r Record) Field(name string) string {
	v, ok := r[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "yes"
		}
		return "no"
	default:
		return fmt.Sprint(t)
	}
}

func resourcePath(res Resource) string {
	return "/api/" + string(res)
}

// List fetches a collection
func (c *Client) List(ctx context.Context, token string, res Resource, query url.Values) ([]Record, error) {
	var records []Record
	if _, err := c.do(ctx, http.MethodGet, resourcePath(res), token, query, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Create adds a record and returns the backend message
func (c *Client) Create(ctx context.Context, token string, res Resource, fields map[string]any) (string, error) {
	return c.do(ctx, http.MethodPost, resourcePath(res), token, nil, fields, nil)
}

// Delete removes a record and returns the backend message
func (c *Client) Delete(ctx context.Context, token string, res Resource, id string) (string, error) {
	return c.do(ctx, http.MethodDelete, resourcePath(res)+"/"+url.PathEscape(id), token, nil, nil, nil)
}

// GenerateAssignations asks the backend to compute professor assignations
func (c *Client) GenerateAssignations(ctx context.Context, token string) (string, error) {
	return c.do(ctx, http.MethodPost, resourcePath(Assignations)+"/generate", token, nil, nil, nil)
}

// TimetableView selects how schedules are grouped
type TimetableView string

const (
	ViewRoom      TimetableView = "room"
	ViewProfessor TimetableView = "professor"
	ViewSection   TimetableView = "section"
)

// Timetable fetches the schedule entries for one room, professor or section.
// An empty id returns the whole view.
func (c *Client) Timetable(ctx context.Context, token string, view TimetableView, id string) ([]Record, error) {
	q := url.Values{"view": {string(view)}}
	if id != "" {
		q.Set("id", id)
	}
	var entries []Record
	if _, err := c.do(ctx, http.MethodGet, "/api/schedules", token, q, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
