package domain

import (
	"io"
	"path/filepath"
	"sync"
	"time"
)

// Category is the accepted-format class of an upload, derived from its extension.
type Category string

const (
	CategoryUnsupported Category = "unsupported"
	CategoryImage       Category = "image"
	CategoryPDF         Category = "pdf"
)

// OperationKind identifies which conversion a session performs.
type OperationKind string

const (
	OpImagesToPDF OperationKind = "images_to_pdf"
	OpPDFToImages OperationKind = "pdf_to_images"
)

// Workspace subdirectories. Inputs and outputs live apart so an upload can
// never shadow a generated file.
const (
	InputDirName   = "in"
	OutputDirName  = "out"
	ScratchDirName = "scratch"
)

// Session represents one in-flight conversion request and its workspace.
type Session struct {
	ID        string
	Root      string // absolute path of the workspace directory
	CreatedAt time.Time

	closeOnce sync.Once
	closeErr  error
}

// InputDir holds ingested uploads.
func (s *Session) InputDir() string { return filepath.Join(s.Root, InputDirName) }

// OutputDir holds generated pages and artifacts.
func (s *Session) OutputDir() string { return filepath.Join(s.Root, OutputDirName) }

// ScratchDir is free for collaborators to use for temporary files.
func (s *Session) ScratchDir() string { return filepath.Join(s.Root, ScratchDirName) }

// CloseOnce runs fn the first time it is called and reports whether this call
// ran it. Later calls return the first result without running fn again.
func (s *Session) CloseOnce(fn func() error) (ran bool, err error) {
	s.closeOnce.Do(func() {
		ran = true
		s.closeErr = fn()
	})
	return ran, s.closeErr
}

// UploadedFile is a client-submitted byte stream and its declared filename.
// Filename is untrusted.
type UploadedFile struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// OrderingManifest is the client-declared sequence of original filenames.
type OrderingManifest []string

// ConversionJob is one conversion scoped to a Session.
type ConversionJob struct {
	SessionID  string
	Kind       OperationKind
	Inputs     []string // ordered absolute paths inside the workspace
	OutputDir  string
	OutputPath string // the PDF for images_to_pdf, the archive for pdf_to_images
	ScratchDir string
}

// Fixed public-facing download names and MIME types.
const (
	PDFDownloadName     = "converted_by_pdforever.pdf"
	ArchiveDownloadName = "pdforever_images.zip"
	MIMEPDF             = "application/pdf"
	MIMEZip             = "application/zip"
)

// ResultArtifact is the file returned to the client.
type ResultArtifact struct {
	Path         string
	DownloadName string
	MIMEType     string
	Pages        int
}

// PageImage records a page written into the workspace by the packager.
type PageImage struct {
	PageNumber int
	ImagePath  string
	Width      int
	Height     int
}

// State is a request's position in the conversion lifecycle.
type State string

const (
	StateOpened     State = "opened"
	StateIngesting  State = "ingesting"
	StateConverting State = "converting"
	StatePackaging  State = "packaging"
	StateDelivering State = "delivering"
	StateFailed     State = "failed"
	StateClosed     State = "closed"
)

var transitions = map[State][]State{
	StateOpened:     {StateIngesting, StateClosed},
	StateIngesting:  {StateConverting, StateFailed},
	StateConverting: {StatePackaging, StateFailed},
	StatePackaging:  {StateDelivering, StateFailed},
	StateDelivering: {StateClosed},
	StateFailed:     {StateClosed},
}

// CanTransition reports whether from → to is a legal lifecycle step.
// CLOSED is terminal.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
