package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akosicedzkii/pdforever/cmd/pdforever/ui"
	"github.com/akosicedzkii/pdforever/internal/delivery"
)

var pagesOutput string

var pagesCmd = &cobra.Command{
	Use:   "pages [flags] PDF",
	Short: "Render every PDF page as a JPEG and bundle them into a ZIP",
	Args:  cobra.ExactArgs(1),
	RunE:  runPages,
}

func init() {
	pagesCmd.Flags().StringVarP(&pagesOutput, "output", "o", "", "output ZIP path (default: next to the PDF)")
	rootCmd.AddCommand(pagesCmd)
}

func runPages(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openPipeline()
	if err != nil {
		return err
	}
	defer s.close()

	files, err := localUploads(args)
	if err != nil {
		return err
	}

	output := pagesOutput
	if output == "" {
		output = defaultOutput(args[0], "_pages.zip")
	}

	bar := ui.NewProgressBar("Rendering pages")
	summary, err := s.pipeline.PDFToImages(ctx, files[0], delivery.FileSink{Path: output}, bar.Update)
	bar.Finish()
	if err != nil {
		ui.Error("Conversion failed")
		return explain(err)
	}

	ui.Success("Wrote %d page(s) to %s", summary.Pages, output)
	return nil
}
