package auth

import (
	"net/http"

	"github.com/EmotionLens/EL-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	verifier := TokenInfo{}

	r.Group(func(r chi.Router) {
		r.Use(middleware.LoginRateLimitMiddleware())
		r.Post("/register", RegisterHandler)
		r.Post("/login", LoginHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.TokenMiddleware(verifier))
		r.Get("/me", MeHandler)
		r.Post("/deactivate", DeactivateHandler)
	})

	return r
}
