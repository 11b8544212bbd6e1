// Package server is the admin web front end: a gin router whose protected
// pages sit behind the route guard and talk to the scheduling backend.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/schedadmin/schedadmin/internal/auth"
	"github.com/schedadmin/schedadmin/internal/backend"
	"github.com/schedadmin/schedadmin/internal/config"
	"github.com/schedadmin/schedadmin/internal/guard"
	"github.com/schedadmin/schedadmin/internal/identity"
	"github.com/schedadmin/schedadmin/internal/routes"
	"github.com/schedadmin/schedadmin/internal/store"
)

const providerKey = "identity_provider"

// Server represents the HTTP server
type Server struct {
	router      *gin.Engine
	db          *gorm.DB
	config      *config.Config
	logger      zerolog.Logger
	validator   *validator.Validate
	backend     *backend.Client
	signer      *auth.CredentialSigner
	revocations *store.Revocations
	accessLog   *store.AccessLog
	guard       *guard.Guard
	jobs        http.Handler
	version     string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	db, err := store.Open(cfg.Database.URL, zlog)
	if err != nil {
		return nil, err
	}

	secret := cfg.Session.Secret
	if secret == "" {
		if secret, err = store.LoadOrCreateSecret(db); err != nil {
			return nil, err
		}
		zlog.Debug().Msg("Using cookie secret from database")
	}
	key, err := auth.DeriveKey(secret, auth.PurposeCredential)
	if err != nil {
		return nil, err
	}
	signer, err := auth.NewCredentialSigner(key, cfg.Session.TTL)
	if err != nil {
		return nil, err
	}

	validate, err := newValidator()
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:          db,
		config:      cfg,
		logger:      zlog,
		validator:   validate,
		backend:     backend.New(cfg.Backend.URL, cfg.Backend.Timeout),
		signer:      signer,
		revocations: store.NewRevocations(db),
		accessLog:   store.NewAccessLog(db),
		version:     version,
	}
	s.guard = guard.New(s.provider, s.accessLog, zlog, cfg.Session.ResolveTimeout)

	if cfg.JobsEnabled() {
		s.jobs = asynqmon.New(asynqmon.Options{
			RootPath:     routes.Jobs.Path(),
			RedisConnOpt: asynq.RedisClientOpt{Addr: cfg.Redis.Address},
		})
	}

	if err := s.setupRouter(); err != nil {
		return nil, err
	}
	return s, nil
}

// provider returns the identity provider of the request, creating it on first
// use so the guard and the handlers share one
func (s *Server) provider(c *gin.Context) *identity.Provider {
	if v, ok := c.Get(providerKey); ok {
		return v.(*identity.Provider)
	}
	credentials := &cookieStore{
		c:           c,
		name:        s.config.Session.CookieName,
		secure:      s.config.Server.SecureCookies,
		signer:      s.signer,
		revocations: s.revocations,
	}
	p := identity.NewProvider(credentials, s.backend, s.logger)
	c.Set(providerKey, p)
	return p
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() error {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	// /AccountList/ and /accountlist are the same page
	s.router.RedirectFixedPath = true
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	tmpl, err := loadTemplates()
	if err != nil {
		return err
	}
	s.router.SetHTMLTemplate(tmpl)

	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, routes.Dashboard.Path())
	})
	s.router.GET("/health", s.healthCheck)

	// Public pages
	s.router.GET(routes.Login.Path(), s.guard.Page(routes.Login, s.loginPage))
	s.router.POST(routes.Login.Path(), s.guard.Page(routes.Login, s.login))
	s.router.GET(routes.ForgotPassword.Path(), s.guard.Page(routes.ForgotPassword, s.forgotPasswordPage))
	s.router.POST(routes.ForgotPassword.Path(), s.guard.Page(routes.ForgotPassword, s.forgotPassword))
	s.router.GET(routes.ResetPassword.Path(), s.guard.Page(routes.ResetPassword, s.resetPasswordPage))
	s.router.POST(routes.ResetPassword.Path(), s.guard.Page(routes.ResetPassword, s.resetPassword))
	s.router.GET(routes.Forbidden.Path(), s.guard.Page(routes.Forbidden, s.forbiddenPage))
	s.router.POST("/logout", s.logout)

	// Verification
	s.router.GET(routes.Verify.Path(), s.guard.Page(routes.Verify, s.verifyPage))
	s.router.POST(routes.Verify.Path(), s.guard.Page(routes.Verify, s.verify))
	s.router.POST(routes.Verify.Path()+"/resend", s.guard.Page(routes.Verify, s.resendOTP))

	// Account pages
	s.router.GET(routes.Dashboard.Path(), s.guard.Page(routes.Dashboard, s.dashboard))
	s.router.GET(routes.Profile.Path(), s.guard.Page(routes.Profile, s.profile))
	s.router.GET(routes.ChangePassword.Path(), s.guard.Page(routes.ChangePassword, s.changePasswordPage))
	s.router.POST(routes.ChangePassword.Path(), s.guard.Page(routes.ChangePassword, s.changePassword))

	// Resource lists and forms
	for _, rp := range resourcePages {
		s.router.GET(rp.list.Path(), s.guard.Page(rp.list, s.listPage(rp)))
		if rp.deletable {
			s.router.POST(rp.list.Path()+"/delete", s.guard.Page(rp.list, s.deleteRecord(rp)))
		}
		if len(rp.fields) == 0 {
			continue
		}
		if rp.add != rp.list {
			s.router.GET(rp.add.Path(), s.guard.Page(rp.add, s.formPage(rp)))
		}
		s.router.POST(rp.add.Path(), s.guard.Page(rp.add, s.createRecord(rp)))
	}
	s.router.POST(routes.Assignation.Path()+"/generate", s.guard.Page(routes.Assignation, s.generateAssignations))

	// Timetables
	for _, tv := range timetableViews {
		s.router.GET(tv.route.Path(), s.guard.Page(tv.route, s.timetable(tv)))
	}

	// Session endpoint for scripts and the SPA-era clients
	api := s.router.Group("/api")
	api.Use(cors.New(cors.Config{
		AllowOrigins:     s.allowedOrigins(),
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	api.GET("/session", s.guard.Page(routes.SessionAPI, s.getSession))

	// Job console
	if s.jobs != nil {
		jobs := s.router.Group(routes.Jobs.Path(), s.guard.Subtree(routes.Jobs))
		jobs.Any("/*any", gin.WrapH(s.jobs))
	}

	s.router.NoRoute(s.guard.ByPath(), s.notFound)
	return nil
}

func (s *Server) allowedOrigins() []string {
	if len(s.config.Server.AllowedOrigins) > 0 {
		return s.config.Server.AllowedOrigins
	}
	return []string{"http://localhost:5173"}
}

// ServeHTTP lets tests drive the router directly
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// GetDB returns the database connection
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Close releases the database
func (s *Server) Close() error {
	return store.Close(s.db)
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              s.config.Server.Address,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", srv.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case <-sigChan:
	}
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// flush WAL writes
	if err := s.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing database")
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
