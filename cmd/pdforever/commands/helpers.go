package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/akosicedzkii/pdforever/internal/domain"
)

// localUploads presents local files as uploads named by their base name.
func localUploads(paths []string) ([]domain.UploadedFile, error) {
	files := make([]domain.UploadedFile, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", path)
		}
		files = append(files, domain.UploadedFile{
			Filename: filepath.Base(path),
			Size:     info.Size(),
			Open:     func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return files, nil
}

// manifestFor returns the explicit order when given, otherwise argument order.
func manifestFor(files []domain.UploadedFile, order []string) domain.OrderingManifest {
	if len(order) > 0 {
		return domain.OrderingManifest(order)
	}
	manifest := make(domain.OrderingManifest, 0, len(files))
	for _, f := range files {
		manifest = append(manifest, f.Filename)
	}
	return manifest
}

// defaultOutput places the artifact next to the first input.
func defaultOutput(input, suffix string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), base+suffix)
}

// explain turns a pipeline error into the message shown to the user.
func explain(err error) error {
	if de, ok := domain.AsDomainError(err); ok {
		if de.Type == domain.ErrorTypeValidation || de.Type == domain.ErrorTypeConversion {
			return errors.New(de.UserMessage())
		}
	}
	return err
}
