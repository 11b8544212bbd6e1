// Package backendtest runs an in-memory scheduling backend for tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// OTP is the passcode the fake accepts
const OTP = "123456"

// Account is a user known to the fake backend
type Account struct {
	ID           string
	Name         string
	Email        string
	Password     string
	Role         string
	DepartmentID string
	Verified     bool
}

// Backend is a fake scheduling backend
type Backend struct {
	*httptest.Server

	mu        sync.Mutex
	accounts  map[string]*Account // by email
	tokens    map[string]string   // token -> email
	resources map[string][]map[string]any
	nextToken int
	nextID    int

	// ProfileStatus, when non-zero, is returned by /api/auth/me
	ProfileStatus int
}

// New starts a fake backend with the given accounts
func New(t *testing.T, accounts ...Account) *Backend {
	t.Helper()

	b := &Backend{
		accounts:  map[string]*Account{},
		tokens:    map[string]string{},
		resources: map[string][]map[string]any{},
	}
	for i := range accounts {
		a := accounts[i]
		b.accounts[a.Email] = &a
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

// Seed adds records to a collection
func (b *Backend) Seed(resource string, records ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range records {
		if _, ok := r["id"]; !ok {
			b.nextID++
			r["id"] = fmt.Sprintf("%s-%d", resource, b.nextID)
		}
		b.resources[resource] = append(b.resources[resource], r)
	}
}

// Records returns a copy of a collection
func (b *Backend) Records(resource string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.resources[resource]...)
}

// IssueToken logs email in without a password and returns the token
func (b *Backend) IssueToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(email)
}

// TokenValid reports whether token is still accepted
func (b *Backend) TokenValid(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.tokens[token]
	return ok
}

// ExpireTokens invalidates every issued token
func (b *Backend) ExpireTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = map[string]string{}
}

func (b *Backend) issueLocked(email string) string {
	b.nextToken++
	tok := fmt.Sprintf("tok-%d", b.nextToken)
	b.tokens[tok] = email
	return tok
}

func write(w http.ResponseWriter, status int, successful bool, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"successful": successful,
		"data":       data,
		"message":    message,
	})
}

func profile(a *Account) map[string]any {
	return map[string]any{
		"id":            a.ID,
		"name":          a.Name,
		"email":         a.Email,
		"role":          a.Role,
		"department_id": a.DepartmentID,
		"verified":      a.Verified,
	}
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	str := func(k string) string {
		s, _ := body[k].(string)
		return s
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		a, ok := b.accounts[str("email")]
		if !ok || a.Password != str("password") {
			write(w, http.StatusUnauthorized, false, nil, "Invalid email or password")
			return
		}
		write(w, http.StatusOK, true, map[string]any{"token": b.issueLocked(a.Email), "user": profile(a)}, "Logged in")
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/forgot-password" {
		write(w, http.StatusOK, true, nil, "If the account exists, a reset link was sent")
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/reset-password" {
		if str("token") != "reset-ok" {
			write(w, http.StatusBadRequest, false, nil, "Reset link expired")
			return
		}
		write(w, http.StatusOK, true, nil, "Password updated")
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	email, ok := b.tokens[token]
	if !ok {
		write(w, http.StatusUnauthorized, false, nil, "Session expired")
		return
	}
	a := b.accounts[email]

	switch {
	case r.URL.Path == "/api/auth/me":
		if b.ProfileStatus != 0 {
			write(w, b.ProfileStatus, false, nil, "unavailable")
			return
		}
		write(w, http.StatusOK, true, profile(a), "")
	case r.URL.Path == "/api/auth/verify-otp":
		if str("code") != OTP {
			write(w, http.StatusBadRequest, false, nil, "Invalid code")
			return
		}
		a.Verified = true
		write(w, http.StatusOK, true, nil, "Account verified")
	case r.URL.Path == "/api/auth/resend-otp":
		write(w, http.StatusOK, true, nil, "A new code was sent")
	case r.URL.Path == "/api/auth/logout":
		delete(b.tokens, token)
		write(w, http.StatusOK, true, nil, "Logged out")
	case r.URL.Path == "/api/auth/change-password":
		if str("current_password") != a.Password {
			write(w, http.StatusBadRequest, false, nil, "Current password is incorrect")
			return
		}
		a.Password = str("new_password")
		write(w, http.StatusOK, true, nil, "Password changed")
	case r.URL.Path == "/api/schedules":
		view := r.URL.Query().Get("view")
		var out []map[string]any
		for _, e := range b.resources["schedules"] {
			if e["view"] == view {
				out = append(out, e)
			}
		}
		write(w, http.StatusOK, true, out, "")
	case r.URL.Path == "/api/assignations/generate":
		write(w, http.StatusOK, true, nil, "Assignations generated")
	case strings.HasPrefix(r.URL.Path, "/api/"):
		b.serveResource(w, r, body)
	default:
		write(w, http.StatusNotFound, false, nil, "not found")
	}
}

func (b *Backend) serveResource(w http.ResponseWriter, r *http.Request, body map[string]any) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/"), "/")
	resource := parts[0]

	switch {
	case r.Method == http.MethodGet && len(parts) == 1:
		records := b.resources[resource]
		if records == nil {
			records = []map[string]any{}
		}
		write(w, http.StatusOK, true, records, "")
	case r.Method == http.MethodPost && len(parts) == 1:
		if body == nil {
			body = map[string]any{}
		}
		b.nextID++
		body["id"] = fmt.Sprintf("%s-%d", resource, b.nextID)
		b.resources[resource] = append(b.resources[resource], body)
		write(w, http.StatusCreated, true, body, "Created")
	case r.Method == http.MethodDelete && len(parts) == 2:
		records := b.resources[resource]
		for i, rec := range records {
			if rec["id"] == parts[1] {
				b.resources[resource] = append(records[:i], records[i+1:]...)
				write(w, http.StatusOK, true, nil, "Deleted")
				return
			}
		}
		write(w, http.StatusNotFound, false, nil, "Record not found")
	default:
		write(w, http.StatusMethodNotAllowed, false, nil, "method not allowed")
	}
}
