/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for local editor frontends

ROUTE GROUPS:
  /api/entries/*        Entry CRUD and listing
  /api/transactions     Transactions-only listing
  /api/query/*          Structured and raw queries
  /api/commodities/*    Commodity declarations
  /api/audit            Mutation log
  /api/health,reload,statistics  Service operations

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  The server is meant to bind to localhost.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Service routes
		r.Get("/health", h.Health)
		r.Post("/reload", h.Reload)
		r.Get("/statistics", h.GetStatistics)

		// Entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.CreateEntry)
			r.Get("/{id}", h.GetEntry)
			r.Put("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		r.Get("/transactions", h.ListTransactions)

		// Query routes
		r.Route("/query", func(r chi.Router) {
			r.Post("/", h.RunQuery)
			r.Post("/raw", h.RunRawQuery)
		})

		// Commodity routes
		r.Route("/commodities", func(r chi.Router) {
			r.Post("/", h.CreateCommodity)
			r.Put("/{symbol}", h.UpdateCommodity)
		})

		// Audit routes
		r.Get("/audit", h.ListAudit)
	})

	return r
}
