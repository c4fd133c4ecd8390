package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Enigma-Deez/Roll-Call/internal/web/handlers"
	"github.com/Enigma-Deez/Roll-Call/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	enrollHandler := handlers.NewEnrollHandler(s.services.Enroller)
	sessionsHandler := handlers.NewSessionsHandler(s.services.Engine)
	identitiesHandler := handlers.NewIdentitiesHandler(s.services.Identities)
	identifyHandler := handlers.NewIdentifyHandler(s.services.Identities, s.services.Detector, s.services.Threshold)
	feedHandler := handlers.NewFeedHandler(s.services.Engine, s.services.Broadcaster, middleware.CheckOrigin())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Websocket feeds outlive any request timeout.
		r.Get("/sessions/{id}/feed", feedHandler.Feed)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(2 * time.Minute))

			// Enrollment
			r.Post("/students/enroll", enrollHandler.Student)
			r.Post("/lecturers/enroll", enrollHandler.Lecturer)

			// Sessions
			r.Post("/sessions/start", sessionsHandler.Start)
			r.Post("/sessions/stop", sessionsHandler.Stop)
			r.Get("/sessions/running", sessionsHandler.Running)
			r.Get("/sessions", sessionsHandler.List)
			r.Get("/sessions/{id}", sessionsHandler.Get)

			// Gallery
			r.Get("/identities", identitiesHandler.List)
			r.Post("/identify", identifyHandler.Identify)
		})
	})
}
