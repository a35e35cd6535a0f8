package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-gallery/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	recognizeHandler := handlers.NewRecognizeHandler(s.svc, s.log)
	identitiesHandler := handlers.NewIdentitiesHandler(s.svc, s.log)
	galleryHandler := handlers.NewGalleryHandler(s.svc, s.log)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/recognize", recognizeHandler.Recognize)

		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Post("/identities", identitiesHandler.Create)
		r.Delete("/identities/{name}", identitiesHandler.Delete)
		r.Post("/identities/{name}/images", identitiesHandler.AddImage)
		r.Get("/identities/{name}/images/{file}", identitiesHandler.GetImage)

		// Gallery
		r.Get("/gallery", galleryHandler.Stats)
		r.Post("/gallery/rebuild", galleryHandler.Rebuild)
	})
}
