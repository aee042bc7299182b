package routes

import (
	"github.com/BradenHooton/carecheck/internal/auth"
	"github.com/BradenHooton/carecheck/internal/handlers"
	"github.com/BradenHooton/carecheck/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	checkInHandler *handlers.CheckInHandler,
	gate auth.SessionGate,
	loginLimit middleware.RateLimitConfig,
) {
	// Patient-facing check-in form
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/checkins", checkInHandler.Record)

	router.Route("/admin", func(r chi.Router) {
		// Reachable while locked
		r.With(middleware.RateLimitByIP(loginLimit)).Post("/login", authHandler.Login)
		r.Get("/status", authHandler.Status)
		r.Get("/lockout", authHandler.LockoutStatus)
		r.Post("/lock", authHandler.Lock)
		r.Post("/lifecycle/resign", authHandler.Resign)
		r.Post("/lifecycle/resume", authHandler.Resume)

		// Sensitive surface: every request here counts as activity
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUnlocked(gate))
			r.Use(auth.TrackActivity(gate))

			r.Post("/activity", authHandler.Activity)
			r.Get("/analytics", adminHandler.GetAnalytics)
		})
	})
}
