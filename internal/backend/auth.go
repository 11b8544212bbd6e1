package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/schedadmin/schedadmin/internal/auth"
)

// User is the account profile as returned by the backend
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id"`
	Verified     bool   `json:"verified"`
}

// Session converts the profile into a session
func (u User) Session() (*auth.Session, error) {
	if u.ID == "" {
		return nil, errors.New("profile has no id")
	}
	role, err := auth.ParseRole(u.Role)
	if err != nil {
		return nil, err
	}
	return &auth.Session{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         role,
		DepartmentID: u.DepartmentID,
		Verified:     u.Verified,
	}, nil
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the data of a successful login
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login authenticates the user and returns the backend token and profile
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var result LoginResult
	_, err := c.do(ctx, http.MethodPost, "/api/auth/login", "", nil, LoginRequest{Email: email, Password: password}, &result)
	if err != nil {
		// a rejected password is not a rejected credential
		if errors.Is(err, auth.ErrCredentialInvalid) {
			return nil, &APIError{Status: http.StatusUnauthorized, Message: "Invalid email or password"}
		}
		return nil, err
	}
	if result.Token == "" {
		return nil, errors.New("login response has no token")
	}
	return &result, nil
}

// FetchProfile loads the profile of the token's owner
func (c *Client) FetchProfile(ctx context.Context, token string) (*auth.Session, error) {
	var user User
	if _, err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, nil, &user); err != nil {
		return nil, err
	}
	session, err := user.Session()
	if err != nil {
		return nil, fmt.Errorf("unusable profile: %w", err)
	}
	return session, nil
}

// VerifyOTP confirms the one-time passcode mailed to the user
func (c *Client) VerifyOTP(ctx context.Context, token, code string) (string, error) {
	body := map[string]string{"code": code}
	return c.do(ctx, http.MethodPost, "/api/auth/verify-otp", token, nil, body, nil)
}

// ResendOTP asks the backend to send a new passcode
func (c *Client) ResendOTP(ctx context.Context, token string) (string, error) {
	return c.do(ctx, http.MethodPost, "/api/auth/resend-otp", token, nil, nil, nil)
}

// Logout invalidates the token on the backend
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil, nil)
	return err
}

// ForgotPassword starts the reset flow for email
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.do(ctx, http.MethodPost, "/api/auth/forgot-password", "", nil, map[string]string{"email": email}, nil)
}

// ResetPassword completes the reset flow
func (c *Client) ResetPassword(ctx context.Context, resetToken, password string) (string, error) {
	body := map[string]string{"token": resetToken, "password": password}
	return c.do(ctx, http.MethodPost, "/api/auth/reset-password", "", nil, body, nil)
}

// ChangePassword updates the signed-in user's password
func (c *Client) ChangePassword(ctx context.Context, token, current, next string) (string, error) {
	body := map[string]string{"current_password": current, "new_password": next}
	return c.do(ctx, http.MethodPost, "/api/auth/change-password", token, nil, body, nil)
}
