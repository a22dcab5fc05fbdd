package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Router assembles the chi mux for the command surface. CORS allows every
// origin for all routed methods (GET, POST, DELETE) and only needs to carry
// the caller-identity headers the rest of the surface requires.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "X-Player-ID", "X-Channel-Type"},
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/commands", func(r chi.Router) {
			r.Post("/setup", h.Setup)
			r.Post("/activate", h.Activate)
			r.Post("/termsofservice", h.AcceptToS)
			r.Post("/setcountry", h.SetCountry)
			r.Get("/profile", h.Profile)
			r.Get("/leaderboard", h.Leaderboard)
			r.Post("/queue", h.Queue)
			r.Delete("/queue", h.LeaveQueue)
			r.Post("/prune", h.Prune)
		})
		r.Route("/matches", func(r chi.Router) {
			r.Post("/result", h.ReportResult)
			r.Post("/{matchID}/replay", h.UploadReplay)
			r.Get("/{matchID}/events", h.MatchEvents)
		})
	})

	return r
}
