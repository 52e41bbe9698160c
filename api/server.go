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
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/debtors/*       Debtor management and metrics
  /api/agreements/*    Agreements with generated schedules
  /api/installments/*  Payments and status overrides
  /api/payments/*      Payment reversal
  /api/facts/*         Salary, transactions, fixed expenses
  /api/snapshots/*     Monthly snapshot rebuild and read
  /api/projections     Cash-flow forecasts
  /api/reminders/*     Reminder target selection
  /api/scenarios/*     Demo data loading (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
		// Debtor routes
		r.Route("/debtors", func(r chi.Router) {
			r.Get("/", h.ListDebtors)
			r.Post("/", h.CreateDebtor)
			r.Get("/{id}/metrics", h.GetDebtorMetrics)
		})

		// Agreement routes
		r.Route("/agreements", func(r chi.Router) {
			r.Get("/", h.ListAgreements)
			r.Post("/", h.CreateAgreement)
			r.Get("/{id}", h.GetAgreement)
			r.Delete("/{id}", h.DeleteAgreement)
		})

		// Installment routes
		r.Route("/installments", func(r chi.Router) {
			r.Post("/{id}/payments", h.ApplyPayment)
			r.Put("/{id}/status", h.SetInstallmentStatus)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Delete("/{id}", h.ReversePayment)
		})

		// Cash-flow fact routes
		r.Route("/facts", func(r chi.Router) {
			r.Put("/salary", h.SaveSalary)
			r.Post("/transactions", h.SaveTransaction)
			r.Put("/fixed-expenses", h.SaveFixedExpense)
		})

		// Snapshot routes
		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/rebuild", h.RebuildSnapshots)
			r.Get("/{month}", h.GetSnapshot)
		})

		// Projection routes
		r.Route("/projections", func(r chi.Router) {
			r.Post("/", h.CreateProjections)
			r.Get("/", h.ListProjections)
		})

		// Reminder routes
		r.Route("/reminders", func(r chi.Router) {
			r.Get("/next", h.NextReminder)
		})

		// Demo scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
