package server

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"

	"github.com/schedadmin/schedadmin/internal/auth"
	"github.com/schedadmin/schedadmin/internal/guard"
	"github.com/schedadmin/schedadmin/internal/routes"
)

//go:embed templates/*.html
var templatesFS embed.FS

func loadTemplates() (*template.Template, error) {
	return template.ParseFS(templatesFS, "templates/*.html")
}

// view is the data every template receives
type view struct {
	Title   string
	Session *auth.Session
	Nav     []navLink
	Flash   string
	Error   string
	Next    string
	Data    any
}

type navLink struct {
	Path   string
	Title  string
	Access string
}

func (s *Server) navFor(role auth.Role) []navLink {
	visible := routes.Visible(role)
	links := make([]navLink, 0, len(visible))
	for _, r := range visible {
		if r == routes.Jobs && s.jobs == nil {
			continue
		}
		links = append(links, navLink{Path: r.Path(), Title: r.Title(), Access: r.Policy().Describe()})
	}
	return links
}

// render writes template name. The session and navigation come from p when
// the page was built behind the guard.
func (s *Server) render(c *gin.Context, status int, name string, p *guard.Principal, v view) {
	if p != nil && p.Session.UserID != "" {
		session := p.Session
		v.Session = &session
		if session.Verified {
			v.Nav = s.navFor(session.Role)
		}
	}
	c.HTML(status, name, v)
}
