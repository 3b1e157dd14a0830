package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akosicedzkii/pdforever/cmd/pdforever/ui"
	"github.com/akosicedzkii/pdforever/internal/delivery"
)

var (
	imagesOutput string
	imagesOrder  []string
)

var imagesCmd = &cobra.Command{
	Use:   "images [flags] IMAGE...",
	Short: "Combine images into one PDF",
	Long: `Combine images into one PDF, one page per image. Pages follow argument
order unless --order lists the file names in the wanted sequence; files not
named by --order are left out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImages,
}

func init() {
	imagesCmd.Flags().StringVarP(&imagesOutput, "output", "o", "", "output PDF path (default: next to the first image)")
	imagesCmd.Flags().StringSliceVar(&imagesOrder, "order", nil, "comma-separated file names giving the page order")
	rootCmd.AddCommand(imagesCmd)
}

func runImages(cmd *cobra.Command, args []string) error {
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

	output := imagesOutput
	if output == "" {
		output = defaultOutput(args[0], ".pdf")
	}

	spin := ui.NewSpinner("Converting images to PDF...")
	spin.Start()
	summary, err := s.pipeline.ImagesToPDF(ctx, files, manifestFor(files, imagesOrder), delivery.FileSink{Path: output})
	spin.Stop()
	if err != nil {
		ui.Error("Conversion failed")
		return explain(err)
	}

	ui.Success("Wrote %d page(s) to %s", summary.Pages, output)
	return nil
}
