package commands

import (
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akosicedzkii/pdforever/cmd/pdforever/ui"
	"github.com/akosicedzkii/pdforever/internal/domain"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
	require.NoError(t, f.Close())
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("UPLOAD_FOLDER", filepath.Join(t.TempDir(), "uploads"))
	ui.SetOutput(io.Discard, io.Discard)
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestLocalUploads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o600))

	files, err := localUploads([]string{path})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "scan.png", files[0].Filename)
	assert.Equal(t, int64(4), files[0].Size)

	rc, err := files[0].Open()
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "data", string(data))

	_, err = localUploads([]string{dir})
	assert.Error(t, err)
	_, err = localUploads([]string{filepath.Join(dir, "missing.png")})
	assert.Error(t, err)
}

func TestManifestFor(t *testing.T) {
	files := []domain.UploadedFile{{Filename: "b.png"}, {Filename: "a.png"}}
	assert.Equal(t, domain.OrderingManifest{"b.png", "a.png"}, manifestFor(files, nil))
	assert.Equal(t, domain.OrderingManifest{"a.png"}, manifestFor(files, []string{"a.png"}))
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, filepath.Join("scans", "page1.pdf"), defaultOutput(filepath.Join("scans", "page1.png"), ".pdf"))
	assert.Equal(t, "report_pages.zip", defaultOutput("report.pdf", "_pages.zip"))
}

func TestExplain(t *testing.T) {
	err := explain(domain.ValidationError(domain.ReasonInvalidType, "notes.txt"))
	assert.EqualError(t, err, "Invalid file type: notes.txt.")

	other := errors.New("disk on fire")
	assert.Equal(t, other, explain(other))
}

func TestImagesAndPagesCommands(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "one.png"), 30, 20)
	writePNG(t, filepath.Join(dir, "two.png"), 20, 30)
	pdf := filepath.Join(dir, "book.pdf")

	require.NoError(t, run(t, "images", "-o", pdf, filepath.Join(dir, "one.png"), filepath.Join(dir, "two.png")))

	pages, err := api.PageCountFile(pdf)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)

	archive := filepath.Join(dir, "book.zip")
	require.NoError(t, run(t, "pages", "-o", archive, pdf))

	r, err := zip.OpenReader(archive)
	require.NoError(t, err)
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"page_1.jpg", "page_2.jpg"}, names)
}

func TestImagesCommandRejectsUnsupported(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0o600))

	err := run(t, "images", "-o", filepath.Join(dir, "out.pdf"), notes)
	assert.EqualError(t, err, "Invalid file type: notes.txt.")
	assert.NoFileExists(t, filepath.Join(dir, "out.pdf"))
}

func TestSweepCommand(t *testing.T) {
	require.NoError(t, run(t, "sweep", "--older-than", "1ns"))
}
