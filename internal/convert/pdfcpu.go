package convert

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/akosicedzkii/pdforever/internal/domain"
)

// pdfcpu embeds these formats directly; anything else is re-encoded as PNG first.
var nativeFormats = map[string]struct{}{
	"jpeg": {},
	"png":  {},
	"tiff": {},
}

var disableConfigDir sync.Once

// PDFCPUEncoder builds a PDF with one page per image, each page sized to its image.
type PDFCPUEncoder struct{}

// NewPDFCPUEncoder creates an encoder. pdfcpu's on-disk config directory is
// disabled so the encoder never writes outside the session workspace.
func NewPDFCPUEncoder() *PDFCPUEncoder {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFCPUEncoder{}
}

// Encode implements domain.ImageEncoder.
func (e *PDFCPUEncoder) Encode(ctx context.Context, job *domain.ConversionJob) error {
	if len(job.Inputs) == 0 {
		return fmt.Errorf("no input images")
	}

	paths := make([]string, 0, len(job.Inputs))
	for i, in := range job.Inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := normalise(in, filepath.Join(job.ScratchDir, fmt.Sprintf("normalised_%d.png", i+1)))
		if err != nil {
			return fmt.Errorf("prepare %s: %w", filepath.Base(in), err)
		}
		paths = append(paths, p)
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.Pos = types.Full

	if err := api.ImportImagesFile(paths, job.OutputPath, imp, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("pdfcpu import: %w", err)
	}
	return nil
}

// normalise returns path unchanged when pdfcpu can embed it, otherwise it
// decodes the image (first frame for GIFs) and writes a PNG copy to dst.
func normalise(path, dst string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	_, kind, err := image.DecodeConfig(f)
	if err != nil {
		return "", fmt.Errorf("unrecognised image data: %w", err)
	}
	if _, ok := nativeFormats[kind]; ok {
		return path, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", kind, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return "", err
	}
	return dst, out.Close()
}
