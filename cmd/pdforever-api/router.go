package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/akosicedzkii/pdforever/cmd/pdforever-api/handlers"
	"github.com/akosicedzkii/pdforever/cmd/pdforever-api/middleware"
	"github.com/akosicedzkii/pdforever/internal/config"
	"github.com/akosicedzkii/pdforever/internal/observability"
	"github.com/akosicedzkii/pdforever/internal/pipeline"
)

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, p *pipeline.Pipeline) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": cfg.Observability.ServiceName})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := p.Workspace().Ready(); err != nil {
			logger.WithContext(r.Context()).Error().Err(err).Msg("Storage root not writable")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	conversion := handlers.NewConversionHandler(logger, p, cfg.Storage.MaxUploadBytes)

	r.Group(func(r chi.Router) {
		if cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Deadline(cfg.Server.RequestTimeout))
		}
		r.Post("/convert", conversion.Convert)
		r.Post("/pdf-to-image", conversion.PDFToImage)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
