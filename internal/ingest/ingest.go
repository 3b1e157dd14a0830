// Package ingest validates uploads and persists them into a session workspace
// in the order the client asked for.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/akosicedzkii/pdforever/internal/domain"
	"github.com/akosicedzkii/pdforever/internal/format"
	"github.com/akosicedzkii/pdforever/internal/observability"
)

// Ingestor stores validated uploads into a session's input directory.
type Ingestor struct {
	validator *format.Validator
	logger    *observability.Logger
}

// NewIngestor creates a new ingestor.
func NewIngestor(logger *observability.Logger) *Ingestor {
	return &Ingestor{
		validator: format.NewValidator(),
		logger:    logger,
	}
}

// Images reorders files by manifest, validates every selected file and only
// then writes them, so a rejected batch never leaves partial input behind.
//
// Duplicate upload names resolve to the last upload with that name. Manifest
// names that match no upload are skipped, uploads missing from the manifest
// are dropped, and a name repeated in the manifest is taken once, at its
// first position.
func (i *Ingestor) Images(ctx context.Context, s *domain.Session, files []domain.UploadedFile, manifest domain.OrderingManifest) ([]string, error) {
	if len(files) == 0 || allUnnamed(files) {
		return nil, domain.ValidationError(domain.ReasonNoFiles, "")
	}

	byName := make(map[string]domain.UploadedFile, len(files))
	for _, f := range files {
		byName[f.Filename] = f
	}

	selected := make([]domain.UploadedFile, 0, len(manifest))
	taken := make(map[string]struct{}, len(manifest))
	for _, name := range manifest {
		f, ok := byName[name]
		if !ok {
			continue
		}
		if _, dup := taken[name]; dup {
			continue
		}
		taken[name] = struct{}{}
		selected = append(selected, f)
	}

	if len(selected) == 0 {
		return nil, domain.ValidationError(domain.ReasonNoValidFiles, "")
	}

	for _, f := range selected {
		if err := i.validator.Require(f.Filename, domain.CategoryImage); err != nil {
			return nil, err
		}
	}

	used := make(map[string]struct{}, len(selected))
	paths := make([]string, 0, len(selected))
	var total int64
	for _, f := range selected {
		path, err := i.store(ctx, s, f, used)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
		total += f.Size
	}

	i.logger.Debug().
		Str("session_id", s.ID).
		Int("uploaded", len(files)).
		Int("ingested", len(paths)).
		Int64("bytes", total).
		Msg("Ingested images")

	return paths, nil
}

// PDF validates and stores a single PDF upload.
func (i *Ingestor) PDF(ctx context.Context, s *domain.Session, file domain.UploadedFile) (string, error) {
	if strings.TrimSpace(file.Filename) == "" {
		return "", domain.ValidationError(domain.ReasonNoFiles, "")
	}
	if err := i.validator.Require(file.Filename, domain.CategoryPDF); err != nil {
		return "", err
	}
	return i.store(ctx, s, file, map[string]struct{}{})
}

func (i *Ingestor) store(ctx context.Context, s *domain.Session, f domain.UploadedFile, used map[string]struct{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uniqueName(format.SanitizeFilename(f.Filename), used)
	path := filepath.Join(s.InputDir(), name)

	src, err := f.Open()
	if err != nil {
		return "", domain.IOError(fmt.Sprintf("open upload %q", f.Filename), err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", domain.IOError(fmt.Sprintf("create %s", name), err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", domain.IOError(fmt.Sprintf("write %s", name), err)
	}
	if err := dst.Close(); err != nil {
		return "", domain.IOError(fmt.Sprintf("close %s", name), err)
	}

	return path, nil
}

// uniqueName keeps distinct uploads distinct after sanitising, e.g. "a b.png"
// and "a_b.png" are stored as "a_b.png" and "a_b-2.png".
func uniqueName(name string, used map[string]struct{}) string {
	candidate := name
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		if _, taken := used[candidate]; !taken {
			used[candidate] = struct{}{}
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
}

func allUnnamed(files []domain.UploadedFile) bool {
	for _, f := range files {
		if f.Filename != "" {
			return false
		}
	}
	return true
}
