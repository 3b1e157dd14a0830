package convert

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/akosicedzkii/pdforever/internal/domain"
)

const pdftoppm = "pdftoppm"

// PopplerDecoder renders PDF pages by running poppler's pdftoppm. The
// location hint is the directory holding the poppler binaries; when empty
// pdftoppm is looked up on PATH.
type PopplerDecoder struct {
	binary string
	dpi    int
}

// NewPopplerDecoder creates a decoder using the pdftoppm found under popplerPath.
func NewPopplerDecoder(popplerPath string, dpi int) *PopplerDecoder {
	binary := pdftoppm
	if popplerPath != "" {
		binary = filepath.Join(popplerPath, pdftoppm)
	}
	return &PopplerDecoder{binary: binary, dpi: dpi}
}

// Decode implements domain.PageDecoder. Pages are rendered losslessly as PNG
// into the job's scratch directory and removed once visited.
func (d *PopplerDecoder) Decode(ctx context.Context, job *domain.ConversionJob, visit domain.PageVisitor) error {
	if len(job.Inputs) != 1 {
		return fmt.Errorf("expected one PDF, got %d inputs", len(job.Inputs))
	}

	prefix := filepath.Join(job.ScratchDir, "page")
	args := []string{
		"-r", strconv.Itoa(d.dpi),
		"-png",
		job.Inputs[0],
		prefix,
	}

	cmd := exec.CommandContext(ctx, d.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	pages, err := renderedPages(prefix)
	if err != nil {
		return err
	}

	for i, path := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		img, err := decodeFile(path)
		if err != nil {
			return fmt.Errorf("read rendered page %d: %w", i+1, err)
		}
		if err := visit(i+1, len(pages), img); err != nil {
			return err
		}
		_ = os.Remove(path)
	}

	return nil
}

// renderedPages lists pdftoppm's output files in page order. pdftoppm pads
// the page number to the width of the page count (page-1.png or page-01.png),
// so the number is parsed instead of relying on lexical order.
func renderedPages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}

	type numbered struct {
		n    int
		path string
	}
	pages := make([]numbered, 0, len(matches))
	for _, m := range matches {
		suffix := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), filepath.Base(prefix)+"-"), ".png")
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		pages = append(pages, numbered{n: n, path: m})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	paths := make([]string, len(pages))
	for i, p := range pages {
		if p.n != i+1 {
			return nil, fmt.Errorf("pdftoppm output missing page %d", i+1)
		}
		paths[i] = p.path
	}
	return paths, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}
