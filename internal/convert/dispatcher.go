// Package convert runs conversion jobs against the encoding collaborators.
package convert

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime/debug"

	"golang.org/x/sync/semaphore"

	"github.com/akosicedzkii/pdforever/internal/domain"
	"github.com/akosicedzkii/pdforever/internal/observability"
)

// Output names inside a session's output directory.
const (
	PDFOutputName     = "converted.pdf"
	ArchiveOutputName = "pages.zip"
)

// Dispatcher invokes the encoder or decoder for a session and bounds how many
// conversions run at once across all sessions.
type Dispatcher struct {
	encoder domain.ImageEncoder
	decoder domain.PageDecoder
	slots   *semaphore.Weighted
	logger  *observability.Logger
}

// NewDispatcher creates a dispatcher allowing maxConcurrent simultaneous conversions.
func NewDispatcher(encoder domain.ImageEncoder, decoder domain.PageDecoder, maxConcurrent int, logger *observability.Logger) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		encoder: encoder,
		decoder: decoder,
		slots:   semaphore.NewWeighted(int64(maxConcurrent)),
		logger:  logger,
	}
}

// ImagesToPDF encodes inputs, in order, into one PDF in the session's output directory.
func (d *Dispatcher) ImagesToPDF(ctx context.Context, s *domain.Session, inputs []string) (*domain.ConversionJob, error) {
	job := &domain.ConversionJob{
		SessionID:  s.ID,
		Kind:       domain.OpImagesToPDF,
		Inputs:     inputs,
		OutputDir:  s.OutputDir(),
		OutputPath: filepath.Join(s.OutputDir(), PDFOutputName),
		ScratchDir: s.ScratchDir(),
	}

	if err := d.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.slots.Release(1)

	err := d.guard(job, func() error { return d.encoder.Encode(ctx, job) })
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ConversionError(domain.ReasonEncodeFailed, "encode images to PDF", err)
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil || info.Size() == 0 {
		return nil, domain.ConversionError(domain.ReasonEmptyOutput, "encoder produced no PDF", err)
	}

	return job, nil
}

// PDFToImages decodes pdfPath page by page, passing each page to visit in
// document order, and returns the job and the number of pages visited. A
// document yielding no pages is an empty_output conversion error.
func (d *Dispatcher) PDFToImages(ctx context.Context, s *domain.Session, pdfPath string, visit domain.PageVisitor) (*domain.ConversionJob, int, error) {
	job := &domain.ConversionJob{
		SessionID:  s.ID,
		Kind:       domain.OpPDFToImages,
		Inputs:     []string{pdfPath},
		OutputDir:  s.OutputDir(),
		OutputPath: filepath.Join(s.OutputDir(), ArchiveOutputName),
		ScratchDir: s.ScratchDir(),
	}

	if err := d.slots.Acquire(ctx, 1); err != nil {
		return nil, 0, err
	}
	defer d.slots.Release(1)

	var (
		pages    int
		visitErr error
	)
	err := d.guard(job, func() error {
		return d.decoder.Decode(ctx, job, func(page, total int, img image.Image) error {
			if page != pages+1 {
				return fmt.Errorf("decoder yielded page %d after page %d", page, pages)
			}
			if err := visit(page, total, img); err != nil {
				visitErr = err
				return err
			}
			pages++
			return nil
		})
	})
	switch {
	case visitErr != nil:
		return nil, pages, visitErr
	case err != nil && ctx.Err() != nil:
		return nil, pages, ctx.Err()
	case err != nil:
		return nil, pages, domain.ConversionError(domain.ReasonDecodeFailed, "decode PDF pages", err)
	case pages == 0:
		return nil, 0, domain.ConversionError(domain.ReasonEmptyOutput, "PDF yielded no pages", nil)
	}

	return job, pages, nil
}

// guard turns a collaborator panic into an error so a malformed input can
// only fail its own request.
func (d *Dispatcher) guard(job *domain.ConversionJob, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("session_id", job.SessionID).
				Str("operation", string(job.Kind)).
				Str("stack", string(debug.Stack())).
				Msgf("Conversion collaborator panicked: %v", r)
			err = fmt.Errorf("collaborator panic: %v", r)
		}
	}()
	return fn()
}

// NewDecoder selects the page decoder named by kind ("fitz" or "poppler").
func NewDecoder(kind, popplerPath string, dpi int) (domain.PageDecoder, error) {
	switch kind {
	case "", "fitz":
		return NewFitzDecoder(dpi), nil
	case "poppler":
		return NewPopplerDecoder(popplerPath, dpi), nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown decoder %q", kind), nil)
	}
}
