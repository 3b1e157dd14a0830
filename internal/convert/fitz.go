package convert

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/akosicedzkii/pdforever/internal/domain"
)

// FitzDecoder renders PDF pages in-process with MuPDF via go-fitz.
type FitzDecoder struct {
	dpi float64
}

// NewFitzDecoder creates a decoder rendering at the given resolution.
func NewFitzDecoder(dpi int) *FitzDecoder {
	return &FitzDecoder{dpi: float64(dpi)}
}

// Decode implements domain.PageDecoder.
func (d *FitzDecoder) Decode(ctx context.Context, job *domain.ConversionJob, visit domain.PageVisitor) error {
	if len(job.Inputs) != 1 {
		return fmt.Errorf("expected one PDF, got %d inputs", len(job.Inputs))
	}

	doc, err := fitz.New(job.Inputs[0])
	if err != nil {
		return fmt.Errorf("open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageNum, d.dpi)
		if err != nil {
			return fmt.Errorf("render page %d: %w", pageNum+1, err)
		}

		if err := visit(pageNum+1, pageCount, img); err != nil {
			return err
		}
	}

	return nil
}
