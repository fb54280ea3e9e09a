/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:      Request logging
  2. Recoverer:   Panic recovery (500 instead of crash)
  3. RequestID:   Unique ID per request for tracing
  4. CORS:        Cross-origin requests for frontend
  5. RequireAuth: Bearer-token actor resolution (everything except /auth
                  login and register)

ROUTE GROUPS:
  /api/auth/*      Register, login, current actor
  /api/users/*     Employee records, entitlement edits, manual credits
  /api/absences/*  Request lifecycle
  /api/balance/*   Balance views
  /api/hours/*     Bulk accrual and its log
  /api/stats       Reporting counters

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: RequireAuth middleware
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

	r.Route("/api", func(r chi.Router) {
		// Public auth routes
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Everything below requires a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Get("/auth/me", h.Me)

			// Employee routes
			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListEmployees)
				r.Get("/{id}", h.GetEmployee)
				r.Put("/{id}", h.UpdateEmployee)
				r.Put("/{id}/hours", h.UpdateEmployeeHours)
				r.Delete("/{id}", h.DeleteEmployee)
				r.Post("/{id}/add-hours", h.AddHours)
				r.Get("/{id}/adjustments", h.ListAdjustments)
			})

			// Absence request routes
			r.Route("/absences", func(r chi.Router) {
				r.Post("/", h.CreateAbsence)
				r.Get("/", h.ListAbsences)
				r.Get("/my", h.MyAbsences)
				r.Get("/pending", h.PendingAbsences)
				r.Put("/{id}/action", h.AbsenceAction)
				r.Put("/{id}/status", h.OverrideAbsenceStatus)
				r.Delete("/{id}", h.DeleteAbsence)
			})

			// Balance routes
			r.Route("/balance", func(r chi.Router) {
				r.Get("/my", h.MyBalance)
				r.Get("/all", h.AllBalances)
				r.Get("/{id}", h.GetBalance)
			})

			// Accrual routes
			r.Route("/hours", func(r chi.Router) {
				r.Post("/monthly-accrual", h.RunAccrual)
				r.Get("/accrual-log", h.AccrualLog)
			})

			r.Get("/stats", h.Stats)
		})
	})

	return r
}
