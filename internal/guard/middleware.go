package guard

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/schedadmin/schedadmin/internal/auth"
	"github.com/schedadmin/schedadmin/internal/identity"
	"github.com/schedadmin/schedadmin/internal/routes"
)

const principalKey = "principal"

const loadingPage = `<!doctype html>
<html><head><meta charset="utf-8"><meta http-equiv="refresh" content="1"><title>Loading</title></head>
<body><p class="loading">Loading&hellip;</p></body></html>`

// Event describes a request the guard turned away
type Event struct {
	UserID string
	Role   auth.Role
	Path   string
	Route  string
	State  State
}

// Recorder persists guard outcomes
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// ProviderFactory builds the identity provider for a request
type ProviderFactory func(c *gin.Context) *identity.Provider

// Principal is handed to every protected page
type Principal struct {
	Session  auth.Session
	Provider *identity.Provider
}

// Token returns the backend token for calls made on behalf of the user
func (p *Principal) Token(ctx context.Context) (string, error) {
	return p.Provider.Credential(ctx)
}

// PageHandler renders a protected page
type PageHandler func(c *gin.Context, p *Principal)

// Guard gates protected pages
type Guard struct {
	providers      ProviderFactory
	recorder       Recorder
	log            zerolog.Logger
	resolveTimeout time.Duration
}

// New creates a guard. recorder may be nil. Resolutions that take longer than
// resolveTimeout are cancelled and the loading placeholder is rendered.
func New(providers ProviderFactory, recorder Recorder, log zerolog.Logger, resolveTimeout time.Duration) *Guard {
	if resolveTimeout <= 0 {
		resolveTimeout = 5 * time.Second
	}
	return &Guard{
		providers:      providers,
		recorder:       recorder,
		log:            log,
		resolveTimeout: resolveTimeout,
	}
}

// Page wraps h so that it only runs for sessions allowed on route
func (g *Guard) Page(route routes.Route, h PageHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := g.Check(c, route, true)
		if !ok {
			return
		}
		h(c, p)
	}
}

// Subtree guards every handler after it with the policy of route
func (g *Guard) Subtree(route routes.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := g.Check(c, route, true); !ok {
			return
		}
		c.Next()
	}
}

// ByPath guards by the request path; unknown paths need any authenticated role
func (g *Guard) ByPath() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, known := routes.Lookup(c.Request.URL.Path)
		if _, ok := g.Check(c, route, known); !ok {
			return
		}
		c.Next()
	}
}

// Check resolves the session and evaluates the route. On any outcome other than
// Authorized it writes the response, aborts the chain and returns false.
func (g *Guard) Check(c *gin.Context, route routes.Route, known bool) (*Principal, bool) {
	provider := g.providers(c)

	if known && route.Policy().Access == routes.Public {
		return &Principal{Provider: provider}, true
	}

	snap, ok := g.resolve(c, provider)
	if !ok {
		c.Abort()
		return nil, false
	}

	d := Evaluate(snap, route, known, c.Request.URL.RequestURI())
	if d.State != Authorized {
		g.deny(c, d, snap)
		return nil, false
	}

	p := &Principal{Provider: provider}
	if snap.Session != nil {
		p.Session = *snap.Session
	}
	c.Set(principalKey, p)
	return p, true
}

func (g *Guard) resolve(c *gin.Context, provider *identity.Provider) (identity.Snapshot, bool) {
	reqCtx := c.Request.Context()
	res := provider.Resolve(reqCtx)

	waitCtx, cancel := context.WithTimeout(reqCtx, g.resolveTimeout)
	defer cancel()

	snap, err := res.Wait(waitCtx)
	if err == nil {
		return snap, true
	}

	res.Cancel()
	if reqCtx.Err() != nil {
		// client went away; nothing to render
		return identity.Snapshot{}, false
	}
	if err != identity.ErrSuperseded {
		g.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("Session resolution did not settle in time")
	}
	return provider.Current(), true
}

func (g *Guard) deny(c *gin.Context, d Decision, snap identity.Snapshot) {
	if d.State == Loading {
		c.Header("Retry-After", "1")
		if wantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"state": d.State.String()})
			return
		}
		c.Data(http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(loadingPage))
		c.Abort()
		return
	}

	g.record(c, d, snap)

	if wantsJSON(c) {
		status := http.StatusForbidden
		if d.State == Unauthenticated {
			status = http.StatusUnauthorized
		}
		c.AbortWithStatusJSON(status, gin.H{
			"successful": false,
			"message":    d.State.String(),
			"redirect":   d.Redirect,
		})
		return
	}

	c.Redirect(http.StatusFound, d.Redirect)
	c.Abort()
}

func (g *Guard) record(c *gin.Context, d Decision, snap identity.Snapshot) {
	ev := Event{
		Path:  c.Request.URL.Path,
		Route: d.Route.String(),
		State: d.State,
	}
	if !d.Known {
		ev.Route = ""
	}
	if snap.Session != nil {
		ev.UserID = snap.Session.UserID
		ev.Role = snap.Session.Role
	}

	g.log.Debug().
		Str("path", ev.Path).
		Str("outcome", d.State.String()).
		Str("user_id", ev.UserID).
		Msg("Guard turned request away")

	if g.recorder == nil {
		return
	}
	if err := g.recorder.Record(c.Request.Context(), ev); err != nil {
		g.log.Warn().Err(err).Msg("Failed to record access event")
	}
}

func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// PrincipalFrom returns the principal stored by Check for handlers mounted behind
// Subtree or ByPath
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok
}
