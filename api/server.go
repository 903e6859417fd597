/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/accounts/*        Accounts (cascade delete)
  /api/transactions/*    Transactions (Balance Engine + audit)
  /api/categories/*      Categories
  /api/events/*          Events, event logs, event plans
  /api/investment-logs   Investment logs
  /api/mandates/*        Mandates, run/skip, due list, scheduler check
  /api/audit             Audit trail
  /api/export, /import   Snapshot backup and restore
  /api/reorder/*         Display order
  /api/settings          Key/value settings

SECURITY NOTE:
  No authentication middleware. All endpoints are public; bind to
  localhost unless something in front of it authenticates.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/ledger/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins is used when no origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins ...string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Patch("/{id}", h.UpdateAccount)
			r.Delete("/{id}", h.DeleteAccount)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.EditTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Patch("/{id}", h.UpdateCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.CreateEvent)
			r.Patch("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.DeleteEvent)
			r.Get("/{id}/transactions", h.ListEventTransactions)
			r.Get("/{id}/logs", h.ListEventLogs)
			r.Post("/{id}/logs", h.CreateEventLog)
			r.Delete("/{id}/logs/{logID}", h.DeleteEventLog)
			r.Get("/{id}/plans", h.ListEventPlans)
			r.Post("/{id}/plans", h.CreateEventPlan)
			r.Delete("/{id}/plans/{planID}", h.DeleteEventPlan)
		})

		r.Route("/investment-logs", func(r chi.Router) {
			r.Get("/", h.ListInvestmentLogs)
			r.Post("/", h.CreateInvestmentLog)
		})

		r.Route("/mandates", func(r chi.Router) {
			r.Get("/", h.ListMandates)
			r.Post("/", h.CreateMandate)
			r.Get("/due", h.ListDueMandates)
			r.Post("/check", h.CheckMandates)
			r.Patch("/{id}", h.UpdateMandate)
			r.Delete("/{id}", h.DeleteMandate)
			r.Post("/{id}/run", h.RunMandate)
			r.Post("/{id}/skip", h.SkipMandate)
		})

		r.Get("/audit", h.ListAudit)
		r.Get("/export", h.Export)
		r.Post("/import", h.Import)
		r.Post("/reorder/{collection}", h.Reorder)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.PutSetting)
	})

	return r
}
