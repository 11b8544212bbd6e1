package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/schedadmin/schedadmin/internal/backend"
	"github.com/schedadmin/schedadmin/internal/guard"
	"github.com/schedadmin/schedadmin/internal/routes"
)

const unavailableMessage = "The scheduling service is unavailable. Try again in a moment."

// LoginForm is the sign-in form
type LoginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
	Next     string `form:"next"`
}

// VerifyForm carries the one-time passcode
type VerifyForm struct {
	Code string `form:"code" binding:"required,otp"`
	Next string `form:"next"`
}

// ForgotPasswordForm starts a password reset
type ForgotPasswordForm struct {
	Email string `form:"email" binding:"required,email"`
}

// ResetPasswordForm completes a password reset
type ResetPasswordForm struct {
	Token    string `form:"token" binding:"required"`
	Password string `form:"password" binding:"required,min=8"`
	Confirm  string `form:"confirm" binding:"required,eqfield=Password"`
}

// ChangePasswordForm updates the signed-in user's password
type ChangePasswordForm struct {
	Current  string `form:"current" binding:"required"`
	Password string `form:"password" binding:"required,min=8,nefield=Current"`
	Confirm  string `form:"confirm" binding:"required,eqfield=Password"`
}

// validationMessage turns a binding error into a banner
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "The form could not be read."
	}
	return fieldMessage(verrs[0], strings.ToLower(verrs[0].Field()))
}

func fieldMessage(fe validator.FieldError, name string) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "email":
		return "Enter a valid email address."
	case "otp":
		return "The code is the 6 digits from the email."
	case "min":
		if fe.Kind() == reflect.Int {
			return fmt.Sprintf("The %s must be at least %s.", name, fe.Param())
		}
		return fmt.Sprintf("The %s must be at least %s characters.", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.Int {
			return fmt.Sprintf("The %s must be at most %s.", name, fe.Param())
		}
		return fmt.Sprintf("The %s must be at most %s characters.", name, fe.Param())
	case "len":
		return fmt.Sprintf("The %s must be %s characters long.", name, fe.Param())
	case "eqfield":
		return "The passwords do not match."
	case "nefield":
		return "The new password must differ from the current one."
	case "slug":
		return fmt.Sprintf("The %s may only contain letters, digits, dashes and underscores.", name)
	case "numeric", "number":
		return fmt.Sprintf("The %s must be a number.", name)
	case "oneof":
		return fmt.Sprintf("Choose a valid %s.", name)
	case "datetime":
		return fmt.Sprintf("The %s must be a time like 08:30.", name)
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}

// backendStatus maps a backend failure to the status of the page reporting it
func backendStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

func orDashboard(next string) string {
	if next = guard.SafeNext(next); next != "" {
		return next
	}
	return routes.Dashboard.Path()
}

func verifyPath(next string) string {
	if next = guard.SafeNext(next); next != "" {
		return routes.Verify.Path() + "?next=" + url.QueryEscape(next)
	}
	return routes.Verify.Path()
}

func (s *Server) loginPage(c *gin.Context, p *guard.Principal) {
	s.render(c, http.StatusOK, "login.html", nil, view{
		Title: "Sign in",
		Next:  guard.SafeNext(c.Query("next")),
	})
}

func (s *Server) login(c *gin.Context, p *guard.Principal) {
	var form LoginForm
	bindErr := c.ShouldBind(&form)
	v := view{Title: "Sign in", Next: guard.SafeNext(form.Next), Data: form.Email}
	if bindErr != nil {
		v.Error = validationMessage(bindErr)
		s.render(c, http.StatusBadRequest, "login.html", nil, v)
		return
	}

	ctx := c.Request.Context()
	res, err := s.backend.Login(ctx, form.Email, form.Password)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", form.Email).Msg("Login failed")
		v.Error = backend.Message(err, unavailableMessage)
		s.render(c, backendStatus(err), "login.html", nil, v)
		return
	}

	session, err := res.User.Session()
	if err != nil {
		s.logger.Error().Err(err).Str("email", form.Email).Msg("Backend returned an unusable profile")
		v.Error = "Your account is not set up for this tool. Contact an administrator."
		s.render(c, http.StatusForbidden, "login.html", nil, v)
		return
	}

	if err := p.Provider.SetSession(ctx, res.Token, *session); err != nil {
		s.logger.Error().Err(err).Msg("Failed to install session")
		v.Error = "Could not start your session."
		s.render(c, http.StatusInternalServerError, "login.html", nil, v)
		return
	}

	s.logger.Info().
		Str("user_id", session.UserID).
		Str("role", string(session.Role)).
		Bool("verified", session.Verified).
		Msg("User logged in")

	if !session.Verified {
		c.Redirect(http.StatusSeeOther, verifyPath(form.Next))
		return
	}
	c.Redirect(http.StatusSeeOther, orDashboard(form.Next))
}

func (s *Server) verifyPage(c *gin.Context, p *guard.Principal) {
	if p.Session.Verified {
		c.Redirect(http.StatusFound, orDashboard(c.Query("next")))
		return
	}
	s.render(c, http.StatusOK, "verify.html", p, view{
		Title: routes.Verify.Title(),
		Next:  guard.SafeNext(c.Query("next")),
	})
}

func (s *Server) verify(c *gin.Context, p *guard.Principal) {
	var form VerifyForm
	bindErr := c.ShouldBind(&form)
	v := view{Title: routes.Verify.Title(), Next: guard.SafeNext(form.Next)}
	if bindErr != nil {
		v.Error = validationMessage(bindErr)
		s.render(c, http.StatusBadRequest, "verify.html", p, v)
		return
	}

	ctx := c.Request.Context()
	token, err := p.Token(ctx)
	if err != nil {
		c.Redirect(http.StatusSeeOther, routes.Login.Path())
		return
	}

	if _, err := s.backend.VerifyOTP(ctx, token, form.Code); err != nil {
		if s.sessionExpired(c, p, err) {
			return
		}
		v.Error = backend.Message(err, unavailableMessage)
		s.render(c, backendStatus(err), "verify.html", p, v)
		return
	}
	p.Provider.MarkVerified()

	s.logger.Info().Str("user_id", p.Session.UserID).Msg("Account verified")
	c.Redirect(http.StatusSeeOther, orDashboard(form.Next))
}

func (s *Server) resendOTP(c *gin.Context, p *guard.Principal) {
	v := view{Title: routes.Verify.Title(), Next: guard.SafeNext(c.PostForm("next"))}

	ctx := c.Request.Context()
	token, err := p.Token(ctx)
	if err != nil {
		c.Redirect(http.StatusSeeOther, routes.Login.Path())
		return
	}

	msg, err := s.backend.ResendOTP(ctx, token)
	if err != nil {
		if s.sessionExpired(c, p, err) {
			return
		}
		v.Error = backend.Message(err, unavailableMessage)
		s.render(c, backendStatus(err), "verify.html", p, v)
		return
	}
	v.Flash = msg
	if v.Flash == "" {
		v.Flash = "A new code is on its way."
	}
	s.render(c, http.StatusOK, "verify.html", p, v)
}

// logout works for any request that carries a cookie, so it is not behind a
// route policy
func (s *Server) logout(c *gin.Context) {
	ctx := c.Request.Context()
	provider := s.provider(c)

	if token, err := provider.Credential(ctx); err == nil {
		if err := s.backend.Logout(ctx, token); err != nil {
			s.logger.Warn().Err(err).Msg("Backend logout failed")
		}
	}
	if err := provider.ClearSession(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear session")
	}

	c.Redirect(http.StatusSeeOther, routes.Login.Path())
}

func (s *Server) forgotPasswordPage(c *gin.Context, p *guard.Principal) {
	s.render(c, http.StatusOK, "forgotpassword.html", nil, view{Title: routes.ForgotPassword.Title()})
}

func (s *Server) forgotPassword(c *gin.Context, p *guard.Principal) {
	v := view{Title: routes.ForgotPassword.Title()}

	var form ForgotPasswordForm
	if err := c.ShouldBind(&form); err != nil {
		v.Error = validationMessage(err)
		s.render(c, http.StatusBadRequest, "forgotpassword.html", nil, v)
		return
	}

	msg, err := s.backend.ForgotPassword(c.Request.Context(), form.Email)
	if err != nil {
		v.Error = backend.Message(err, unavailableMessage)
		s.render(c, backendStatus(err), "forgotpassword.html", nil, v)
		return
	}
	v.Flash = msg
	if v.Flash == "" {
		v.Flash = "Check your inbox for a reset link."
	}
	s.render(c, http.StatusOK, "forgotpassword.html", nil, v)
}

func (s *Server) resetPasswordPage(c *gin.Context, p *guard.Principal) {
	v := view{Title: routes.ResetPassword.Title(), Data: c.Query("token")}
	if v.Data == "" {
		v.Error = "This reset link is incomplete. Request a new one."
	}
	s.render(c, http.StatusOK, "resetpassword.html", nil, v)
}

func (s *Server) resetPassword(c *gin.Context, p *guard.Principal) {
	var form ResetPasswordForm
	bindErr := c.ShouldBind(&form)
	v := view{Title: routes.ResetPassword.Title(), Data: form.Token}
	if bindErr != nil {
		v.Error = validationMessage(bindErr)
		s.render(c, http.StatusBadRequest, "resetpassword.html", nil, v)
		return
	}

	msg, err := s.backend.ResetPassword(c.Request.Context(), form.Token, form.Password)
	if err != nil {
		v.Error = backend.Message(err, unavailableMessage)
		s.render(c, backendStatus(err), "resetpassword.html", nil, v)
		return
	}

	if msg == "" {
		msg = "Your password was reset."
	}
	s.render(c, http.StatusOK, "login.html", nil, view{Title: "Sign in", Flash: msg})
}

func (s *Server) changePasswordPage(c *gin.Context, p *guard.Principal) {
	s.render(c, http.StatusOK, "changepassword.html", p, view{Title: routes.ChangePassword.Title()})
}

func (s *Server) changePassword(c *gin.Context, p *guard.Principal) {
	v := view{Title: routes.ChangePassword.Title()}

	var form ChangePasswordForm
	if err := c.ShouldBind(&form); err != nil {
		v.Error = validationMessage(err)
		s.render(c, http.StatusBadRequest, "changepassword.html", p, v)
		return
	}

	ctx := c.Request.Context()
	token, err := p.Token(ctx)
	if err != nil {
		c.Redirect(http.StatusSeeOther, routes.Login.Path())
		return
	}

	msg, err := s.backend.ChangePassword(ctx, token, form.Current, form.Password)
	if err != nil {
		if s.sessionExpired(c, p, err) {
			return
		}
		v.Error = backend.Message(err, unavailableMessage)
		s.render(c, backendStatus(err), "changepassword.html", p, v)
		return
	}
	v.Flash = msg
	if v.Flash == "" {
		v.Flash = "Password changed."
	}
	s.render(c, http.StatusOK, "changepassword.html", p, v)
}

func (s *Server) forbiddenPage(c *gin.Context, p *guard.Principal) {
	s.render(c, http.StatusForbidden, "forbidden.html", nil, view{Title: routes.Forbidden.Title()})
}
