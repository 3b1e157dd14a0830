// Package delivery hands a finished artifact to its caller.
package delivery

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/akosicedzkii/pdforever/internal/domain"
)

// Deliverer sends an artifact to the caller. Implementations must finish
// reading the artifact before returning; the workspace is removed afterwards.
type Deliverer interface {
	Deliver(ctx context.Context, artifact *domain.ResultArtifact) error
}

// HTTPResponder streams the artifact as an attachment response.
type HTTPResponder struct {
	w       http.ResponseWriter
	started bool
}

// NewHTTPResponder creates a responder writing to w.
func NewHTTPResponder(w http.ResponseWriter) *HTTPResponder {
	return &HTTPResponder{w: w}
}

// Started reports whether response headers have been written. Once true, an
// error can no longer be reported to the client as a status code.
func (r *HTTPResponder) Started() bool {
	return r.started
}

// Deliver implements Deliverer.
func (r *HTTPResponder) Deliver(ctx context.Context, artifact *domain.ResultArtifact) error {
	f, err := os.Open(artifact.Path)
	if err != nil {
		return domain.IOError("open artifact", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.IOError("stat artifact", err)
	}

	h := r.w.Header()
	h.Set("Content-Type", artifact.MIMEType)
	h.Set("Content-Disposition", contentDisposition(artifact.DownloadName))
	h.Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")

	r.started = true
	r.w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(r.w, readerWithContext(ctx, f)); err != nil {
		return fmt.Errorf("stream artifact: %w", err)
	}
	return nil
}

// contentDisposition quotes the filename. Download names are fixed constants;
// anything else is routed through mime.FormatMediaType.
func contentDisposition(name string) string {
	if name == domain.PDFDownloadName || name == domain.ArchiveDownloadName {
		return fmt.Sprintf("attachment; filename=%q", name)
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

// FileSink copies the artifact to a local path. The destination is written
// to a temporary file in the same directory and renamed into place.
type FileSink struct {
	Path string
}

// Deliver implements Deliverer.
func (s FileSink) Deliver(ctx context.Context, artifact *domain.ResultArtifact) error {
	src, err := os.Open(artifact.Path)
	if err != nil {
		return domain.IOError("open artifact", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(filepath.Dir(s.Path), ".pdforever-*")
	if err != nil {
		return domain.IOError("create destination", err)
	}
	tmp := dst.Name()

	if _, err := io.Copy(dst, readerWithContext(ctx, src)); err != nil {
		dst.Close()
		os.Remove(tmp)
		return domain.IOError("write destination", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return domain.IOError("write destination", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return domain.IOError("write destination", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return domain.IOError("move destination into place", err)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
