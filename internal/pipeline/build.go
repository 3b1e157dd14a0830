package pipeline

import (
	"github.com/akosicedzkii/pdforever/internal/config"
	"github.com/akosicedzkii/pdforever/internal/convert"
	"github.com/akosicedzkii/pdforever/internal/events"
	"github.com/akosicedzkii/pdforever/internal/ingest"
	"github.com/akosicedzkii/pdforever/internal/observability"
	"github.com/akosicedzkii/pdforever/internal/pack"
	"github.com/akosicedzkii/pdforever/internal/workspace"
)

// FromConfig wires the production stages described by cfg.
func FromConfig(cfg *config.Config, publisher events.Publisher, logger *observability.Logger) (*Pipeline, error) {
	ws, err := workspace.NewManager(workspace.Config{
		Root:          cfg.Storage.Root,
		CreateRetries: cfg.Storage.CreateRetries,
	}, logger)
	if err != nil {
		return nil, err
	}

	decoder, err := convert.NewDecoder(cfg.Convert.Decoder, cfg.Convert.PopplerPath, cfg.Convert.DPI)
	if err != nil {
		return nil, err
	}

	return New(
		ws,
		ingest.NewIngestor(logger),
		convert.NewDispatcher(convert.NewPDFCPUEncoder(), decoder, cfg.Convert.MaxConcurrent, logger),
		pack.NewPackager(cfg.Convert.JPEGQuality),
		publisher,
		logger,
	), nil
}
