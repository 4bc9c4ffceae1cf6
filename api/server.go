/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RealIP:        Honour X-Forwarded-For for rate-limit keys and logs
  3. RequestLogger: slog line per request
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for the frontend

  Under /api (except /api/cron):
  6. auth.Middleware: Bearer JWT -> auth.Principal (401 otherwise)
  7. RateLimiter:     Per-user token bucket (429), when configured

ROUTE GROUPS:
  /healthz              Liveness
  /readyz               Readiness (database ping)
  /api/cron             Recalculation job (own bearer secret)
  /api/work-sessions/*  Work session CRUD
  /api/extra-hours/*    Ledger and usage records
  /api/stats            Dashboard
  /*                    Static files (frontend), when StaticDir exists

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/extrahours/auth"
)

// Options configure NewRouter beyond the handler itself.
type Options struct {
	Verifier    *auth.Verifier
	Limiter     *RateLimiter // nil disables rate limiting
	CORSOrigins []string
	StaticDir   string // built frontend; ignored if missing
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !containsWildcard(origins),
	}))

	r.Get("/healthz", Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/cron", h.RunCron)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(opts.Verifier, unauthorized))
			if opts.Limiter != nil {
				r.Use(opts.Limiter.Middleware)
			}

			// Work session routes
			r.Route("/work-sessions", func(r chi.Router) {
				r.Get("/", h.ListWorkSessions)
				r.Post("/", h.CreateWorkSession)
				r.Put("/{id}", h.UpdateWorkSession)
				r.Delete("/{id}", h.DeleteWorkSession)
			})

			// Extra hours routes
			r.Route("/extra-hours", func(r chi.Router) {
				r.Get("/available", h.GetAvailable)
				r.Get("/usage", h.ListUsage)
				r.Post("/usage", h.CreateUsage)
				r.Put("/usage/{id}", h.UpdateUsage)
				r.Delete("/usage/{id}", h.DeleteUsage)
			})

			r.Get("/stats", h.GetStats)
		})
	})

	if opts.StaticDir != "" {
		mountStatic(r, opts.StaticDir)
	}

	return r
}

// mountStatic serves a built single-page app, falling back to index.html
// for client-side routes.
func mountStatic(r chi.Router, staticDir string) {
	if _, err := os.Stat(staticDir); err != nil {
		return
	}

	fileServer := http.FileServer(http.Dir(staticDir))
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		fullPath := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))
		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
