package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lodestone-ai/lodestone/internal/api"
	"github.com/lodestone-ai/lodestone/internal/api/handlers"
	"github.com/lodestone-ai/lodestone/internal/api/middleware"
)

type RouterConfig struct {
	AuthToken       string
	DocumentHandler *handlers.DocumentHandler
	IndexHandler    *handlers.IndexHandler
	SearchHandler   *handlers.SearchHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Raw document uploads arrive base64-encoded in the submit body.
	const maxBodyBytes int64 = 32 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.AuthToken))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Submit)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
			r.Get("/{id}/chunks", cfg.DocumentHandler.ListChunks)
			r.Post("/{id}/extract", cfg.DocumentHandler.TriggerExtraction)
			r.Post("/{id}/enrich", cfg.DocumentHandler.TriggerEnrichment)
		})

		r.Route("/indices", func(r chi.Router) {
			r.Post("/", cfg.IndexHandler.Create)
			r.Get("/", cfg.IndexHandler.List)
			r.Get("/{table}/{name}", cfg.IndexHandler.Get)
			r.Delete("/{table}/{name}", cfg.IndexHandler.Delete)
		})

		r.Post("/search", cfg.SearchHandler.Search)
	})

	return r
}
