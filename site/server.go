package site

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/foomo/portfolio-mcp/i18n"
	"github.com/foomo/portfolio-mcp/mount"
	"github.com/foomo/portfolio-mcp/service"
)

//go:embed pages/*.html
var pages embed.FS

const (
	projectListSelector = "[data-project-list]"
	eventProjects       = "projects"
	cookieMaxAge        = 365 * 24 * 60 * 60
)

type Server struct {
	logger  *zap.Logger
	service service.Service
	catalog *i18n.Catalog
	hub     *Hub
}

// NewServer serves the pages and the projects API. Every completed refresh
// of svc is broadcast to the hub's clients.
func NewServer(logger *zap.Logger, svc service.Service, catalog *i18n.Catalog, hub *Hub) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	s := &Server{
		logger:  logger,
		service: svc,
		catalog: catalog,
		hub:     hub,
	}
	svc.OnRefresh(func(snapshot service.Snapshot) {
		hub.Broadcast(Event{
			ID:    strconv.FormatUint(snapshot.Seq, 10),
			Event: eventProjects,
			Data:  snapshot,
		})
	})
	return s
}

// Register adds the site routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.page("pages/index.html"))
	mux.HandleFunc("GET /index.html", s.page("pages/index.html"))
	mux.HandleFunc("GET /projects", s.page("pages/projects.html"))
	mux.HandleFunc("GET /api/projects", s.handleProjects)
	mux.HandleFunc("POST /api/projects/refresh", s.handleRefresh)
	mux.Handle("GET /events", s.hub)
	mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		localizer, err := s.catalog.Resolve(r.Context(), s.language(w, r))
		if err != nil {
			s.logger.Warn("rendering untranslated page", zap.String("page", name), zap.Error(err))
		}

		var buf bytes.Buffer
		if err := s.renderPage(&buf, name, localizer); err != nil {
			s.logger.Error("failed to render page", zap.String("page", name), zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Language", localizer.Language())
		w.Header().Set("Vary", "Cookie")
		_, _ = w.Write(buf.Bytes())
	}
}

func (s *Server) renderPage(buf *bytes.Buffer, name string, localizer *i18n.Localizer) error {
	shell, err := pages.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read page %s: %w", name, err)
	}
	root, err := html.Parse(bytes.NewReader(shell))
	if err != nil {
		return fmt.Errorf("failed to parse page %s: %w", name, err)
	}

	mount.SetLanguage(root, localizer.Language())
	mount.Translate(root, localizer)
	mount.HighlightNav(root, mount.Page(root))

	snapshot := s.service.Snapshot()
	goquery.NewDocumentFromNode(root).Find(projectListSelector).Each(func(_ int, container *goquery.Selection) {
		mount.Replace(container.Nodes[0], mount.List(listState(snapshot.State), snapshot.Result, localizer)...)
	})

	return html.Render(buf, root)
}

// language picks ?lang= over the cookie over the default. A supported
// ?lang= is remembered in the cookie.
func (s *Server) language(w http.ResponseWriter, r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); s.catalog.IsSupported(lang) {
		http.SetCookie(w, &http.Cookie{
			Name:     i18n.CookieName,
			Value:    lang,
			Path:     "/",
			MaxAge:   cookieMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		return lang
	}
	if cookie, err := r.Cookie(i18n.CookieName); err == nil && s.catalog.IsSupported(cookie.Value) {
		return cookie.Value
	}
	return s.catalog.DefaultLanguage()
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, s.service.Snapshot())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, s.service.Reload(context.WithoutCancel(r.Context())))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeSnapshot(w http.ResponseWriter, snapshot service.Snapshot) {
	status := http.StatusOK
	switch snapshot.State {
	case service.StateLoading:
		status = http.StatusAccepted
	case service.StateFailed:
		status = http.StatusBadGateway
	case service.StateReady:
	}
	s.writeJSON(w, status, snapshot)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func listState(state service.State) mount.ListState {
	switch state {
	case service.StateReady:
		return mount.ListStateReady
	case service.StateFailed:
		return mount.ListStateFailed
	default:
		return mount.ListStateLoading
	}
}
