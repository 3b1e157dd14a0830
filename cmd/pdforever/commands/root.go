// Package commands implements the pdforever CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akosicedzkii/pdforever/cmd/pdforever/ui"
	"github.com/akosicedzkii/pdforever/internal/config"
	"github.com/akosicedzkii/pdforever/internal/events"
	"github.com/akosicedzkii/pdforever/internal/observability"
	"github.com/akosicedzkii/pdforever/internal/pipeline"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "pdforever",
	Short: "Convert images to PDF and PDF pages to images",
	Long: `pdforever runs the same session-scoped conversion pipeline as the API
server against local files. Every run works in a private workspace under the
configured storage root and removes it when the run ends.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.InitUI(noColor)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app bundles what a command needs to run the pipeline.
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	pipeline *pipeline.Pipeline
	close    func()
}

func openPipeline() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      "console",
		Output:      os.Stderr,
		ServiceName: cfg.Observability.ServiceName,
	})

	publisher, err := events.New(cfg.Events, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Event publisher unavailable, logging events instead")
		publisher = events.NewLogPublisher(logger)
	}

	p, err := pipeline.FromConfig(cfg, publisher, logger)
	if err != nil {
		publisher.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		pipeline: p,
		close:    func() { publisher.Close() },
	}, nil
}
