package emotion

import (
	"net/http"

	"github.com/EmotionLens/EL-Backend/internal/auth"
	"github.com/EmotionLens/EL-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	verifier := auth.TokenInfo{}

	r.Get("/meta", MetaHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.TokenMiddleware(verifier))

		r.Post("/sessions", CreateSessionHandler)
		r.Get("/sessions", ListSessionsHandler)
		r.Get("/sessions/{session_id}", GetSessionHandler)
		r.Patch("/sessions/{session_id}", UpdateSessionHandler)
		r.Post("/sessions/{session_id}/close", CloseSessionHandler)
		r.Delete("/sessions/{session_id}", DeleteSessionHandler)
		r.Get("/sessions/{session_id}/detections", ListDetectionsHandler)
		r.Get("/sessions/{session_id}/summary", SummaryHandler)
		r.Get("/sessions/{session_id}/images", ListSessionImagesHandler)

		r.Post("/detections", RecordDetectionHandler)
		r.Get("/detections", ListUserDetectionsHandler)
		r.Delete("/detections/{emotion_id}", DeleteDetectionHandler)

		r.Post("/images", CreateImageHandler)
		r.Delete("/images/{image_id}", DeleteImageHandler)
	})

	return r
}
