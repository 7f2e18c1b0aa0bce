package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// Agent routes
			r.Post("/agent/query", apiHandler.AgentQueryHandler)
			r.Get("/agent/insights", apiHandler.AgentInsightsHandler)
			r.Delete("/agent/history", apiHandler.ClearHistoryHandler)

			// Journal routes
			r.Post("/journal", apiHandler.CreateJournalHandler)
			r.Get("/journal", apiHandler.ListJournalHandler)
			r.Post("/journal/search", apiHandler.SearchJournalHandler)
			r.Get("/journal/{entryID}", apiHandler.GetJournalHandler)
			r.Delete("/journal/{entryID}", apiHandler.DeleteJournalHandler)

			// Raw metric readout
			r.Get("/health-data", apiHandler.HealthDataHandler)
		})
	})

	return r
}
