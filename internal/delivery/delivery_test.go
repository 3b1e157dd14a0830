package delivery

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akosicedzkii/pdforever/internal/domain"
)

func artifact(t *testing.T, body string) *domain.ResultArtifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), "converted.pdf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return &domain.ResultArtifact{
		Path:         path,
		DownloadName: domain.PDFDownloadName,
		MIMEType:     domain.MIMEPDF,
		Pages:        1,
	}
}

func TestHTTPResponderWritesAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	r := NewHTTPResponder(rec)
	assert.False(t, r.Started())

	require.NoError(t, r.Deliver(context.Background(), artifact(t, "%PDF-1.7 body")))

	assert.True(t, r.Started())
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="converted_by_pdforever.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "13", rec.Header().Get("Content-Length"))
	assert.Equal(t, "%PDF-1.7 body", rec.Body.String())
}

func TestHTTPResponderMissingArtifact(t *testing.T) {
	rec := httptest.NewRecorder()
	r := NewHTTPResponder(rec)

	err := r.Deliver(context.Background(), &domain.ResultArtifact{Path: filepath.Join(t.TempDir(), "gone.zip")})
	require.Error(t, err)
	assert.False(t, r.Started())
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestHTTPResponderCancelledMidStream(t *testing.T) {
	rec := httptest.NewRecorder()
	r := NewHTTPResponder(rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Deliver(ctx, artifact(t, "data"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, r.Started())
}

func TestFileSink(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.pdf")

	require.NoError(t, FileSink{Path: dst}.Deliver(context.Background(), artifact(t, "pdf bytes")))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(got))

	left, _ := filepath.Glob(filepath.Join(filepath.Dir(dst), ".pdforever-*"))
	assert.Empty(t, left)
}

func TestFileSinkMissingDirectory(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "missing", "out.pdf")
	err := FileSink{Path: dst}.Deliver(context.Background(), artifact(t, "x"))
	assert.Error(t, err)
}
