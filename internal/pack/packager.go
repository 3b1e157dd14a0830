// Package pack turns conversion output into the artifact handed to delivery.
package pack

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/akosicedzkii/pdforever/internal/domain"
)

// PageExtension is the image extension of every packaged page.
const PageExtension = ".jpg"

// PageName returns the deterministic, 1-indexed name of page n.
func PageName(n int) string {
	return fmt.Sprintf("page_%d%s", n, PageExtension)
}

// Packager writes page images and bundles them into an archive.
type Packager struct {
	quality int
}

// NewPackager creates a packager encoding pages at the given JPEG quality.
func NewPackager(quality int) *Packager {
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Packager{quality: quality}
}

// WritePage encodes img as page n in dir. A page that already exists is an
// error, so a page number is written at most once per session.
func (p *Packager) WritePage(dir string, n int, img image.Image) (domain.PageImage, error) {
	outputPath := filepath.Join(dir, PageName(n))
	outputFile, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return domain.PageImage{}, domain.IOError(fmt.Sprintf("Failed to create output file for page %d", n), err)
	}

	opts := &jpeg.Options{Quality: p.quality}
	err = jpeg.Encode(outputFile, img, opts)
	closeErr := outputFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return domain.PageImage{}, domain.ConversionError(domain.ReasonPackageFailed, fmt.Sprintf("Failed to encode page %d as JPG", n), err)
	}

	bounds := img.Bounds()
	return domain.PageImage{
		PageNumber: n,
		ImagePath:  outputPath,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
	}, nil
}

// Archive writes pages, in the given order, into a flat ZIP at path. Entries
// carry only the page's base name.
func (p *Packager) Archive(ctx context.Context, path string, pages []domain.PageImage) (*domain.ResultArtifact, error) {
	if len(pages) == 0 {
		return nil, domain.ConversionError(domain.ReasonEmptyOutput, "no pages to archive", nil)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, domain.IOError("Failed to create archive", err)
	}

	if err := writeArchive(ctx, f, pages); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, domain.ConversionError(domain.ReasonPackageFailed, "close archive", err)
	}

	return &domain.ResultArtifact{
		Path:         path,
		DownloadName: domain.ArchiveDownloadName,
		MIMEType:     domain.MIMEZip,
		Pages:        len(pages),
	}, nil
}

func writeArchive(ctx context.Context, w io.Writer, pages []domain.PageImage) error {
	zw := zip.NewWriter(w)
	modified := time.Now()

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addEntry(zw, page.ImagePath, modified); err != nil {
			return domain.ConversionError(domain.ReasonPackageFailed, fmt.Sprintf("add page %d to archive", page.PageNumber), err)
		}
	}

	if err := zw.Close(); err != nil {
		return domain.ConversionError(domain.ReasonPackageFailed, "finalise archive", err)
	}
	return nil
}

func addEntry(zw *zip.Writer, path string, modified time.Time) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     filepath.Base(path),
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, src)
	return err
}

// PDF describes a generated PDF as the artifact; images → PDF has no packaging step.
func (p *Packager) PDF(path string, pages int) (*domain.ResultArtifact, error) {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return nil, domain.ConversionError(domain.ReasonEmptyOutput, "missing PDF artifact", err)
	}
	return &domain.ResultArtifact{
		Path:         path,
		DownloadName: domain.PDFDownloadName,
		MIMEType:     domain.MIMEPDF,
		Pages:        pages,
	}, nil
}
