package server

import (
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/schedadmin/schedadmin/internal/guard"
)

var (
	otpPattern  = regexp.MustCompile(`^[0-9]{6}$`)
	slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

	bindingOnce sync.Once
	bindingErr  error
)

// registerValidations adds the custom tags to v
func registerValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return otpPattern.MatchString(fl.Field().String())
	}); err != nil {
		return err
	}
	// room codes, course codes and section names
	return v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
}

// newValidator returns the validator used for resource forms and registers the
// same tags on gin's binding engine
func newValidator() (*validator.Validate, error) {
	bindingOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			bindingErr = errors.New("unexpected gin validator engine")
			return
		}
		bindingErr = registerValidations(engine)
	})
	if bindingErr != nil {
		return nil, bindingErr
	}

	v := validator.New()
	if err := registerValidations(v); err != nil {
		return nil, err
	}
	return v, nil
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if p, ok := guard.PrincipalFrom(c); ok && p.Session.UserID != "" {
			event = event.Str("user_id", p.Session.UserID)
		}
		event.Msg("HTTP request")
	}
}
