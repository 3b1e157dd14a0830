package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/akosicedzkii/pdforever/cmd/pdforever/ui"
)

var sweepOlderThan time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove session workspaces left behind by a crash",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepOlderThan, "older-than", 0, "only remove workspaces older than this (default: storage.stale_after)")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	s, err := openPipeline()
	if err != nil {
		return err
	}
	defer s.close()

	olderThan := sweepOlderThan
	if olderThan == 0 {
		olderThan = s.cfg.Storage.StaleAfter
	}

	removed, err := s.pipeline.Workspace().Sweep(context.Background(), olderThan)
	if err != nil {
		return err
	}

	ui.Info("Storage root: %s", s.pipeline.Workspace().Root())
	ui.Success("Removed %d orphaned workspace(s)", removed)
	return nil
}
