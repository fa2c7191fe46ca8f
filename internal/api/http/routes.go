package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"traderboard/internal/api/http/mw"
	"traderboard/internal/metrics"
)

func BuildRouter(
	h *Handler,
	logMW *mw.LoggingMiddleware,
	corsMW *mw.CORSMiddleware,
	jwtMW *mw.JWTMiddleware,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if logMW != nil {
		r.Use(logMW.Handler)
	}
	if corsMW != nil {
		r.Use(corsMW.Handler())
	}

	// tech endpoint not auth
	r.Get("/healthz", h.Healthz)
	r.Get("/readiness", h.Readiness)
	r.Mount("/metrics", metrics.Handler())

	r.Route("/api", func(apiR chi.Router) {
		if jwtMW != nil {
			apiR.Use(jwtMW.Handler)
		}

		apiR.Post("/deals", h.DealWon)

		apiR.Route("/users", func(u chi.Router) {
			u.Post("/", h.RegisterUser)
			u.Route("/{id}", func(uu chi.Router) {
				uu.Get("/", h.UserStatus)
				uu.Put("/name", h.RenameUser)
				uu.Post("/connect", h.ConnectUser)
				uu.Post("/disconnect", h.DisconnectUser)
				uu.Get("/rating", h.UserRating)
			})
		})
	})

	return r
}
