// Package handlers provides HTTP handlers for the pdforever API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/akosicedzkii/pdforever/internal/delivery"
	"github.com/akosicedzkii/pdforever/internal/domain"
	"github.com/akosicedzkii/pdforever/internal/observability"
	"github.com/akosicedzkii/pdforever/internal/pipeline"
)

// Multipart field names.
const (
	FieldImages    = "images"
	FieldFileOrder = "file_order"
	FieldFile      = "file"
)

// Parts larger than this are spooled to disk by the multipart parser.
const multipartMemory = 8 << 20

// ConversionHandler serves the two conversion endpoints.
type ConversionHandler struct {
	logger         *observability.Logger
	pipeline       *pipeline.Pipeline
	maxUploadBytes int64
}

// NewConversionHandler creates a new conversion handler.
func NewConversionHandler(logger *observability.Logger, p *pipeline.Pipeline, maxUploadBytes int64) *ConversionHandler {
	return &ConversionHandler{
		logger:         logger,
		pipeline:       p,
		maxUploadBytes: maxUploadBytes,
	}
}

// Convert handles POST /convert.
func (h *ConversionHandler) Convert(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer form.RemoveAll()

	files := uploadedFiles(form.File[FieldImages])
	manifest := domain.OrderingManifest(form.Value[FieldFileOrder])

	responder := delivery.NewHTTPResponder(w)
	summary, err := h.pipeline.ImagesToPDF(r.Context(), files, manifest, responder)
	if err != nil {
		h.fail(w, r, responder, err)
		return
	}

	h.logger.WithContext(r.Context()).Info().
		Str("session_id", summary.SessionID).
		Int("pages", summary.Pages).
		Msg("PDF delivered")
}

// PDFToImage handles POST /pdf-to-image.
func (h *ConversionHandler) PDFToImage(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r)
	if !ok {
		return
	}
	defer form.RemoveAll()

	headers := form.File[FieldFile]
	if len(headers) == 0 {
		h.writeDomainError(w, domain.ValidationError(domain.ReasonNoFiles, ""))
		return
	}
	file := uploadedFiles(headers[:1])[0]

	responder := delivery.NewHTTPResponder(w)
	summary, err := h.pipeline.PDFToImages(r.Context(), file, responder, nil)
	if err != nil {
		h.fail(w, r, responder, err)
		return
	}

	h.logger.WithContext(r.Context()).Info().
		Str("session_id", summary.SessionID).
		Int("pages", summary.Pages).
		Msg("Page archive delivered")
}

// parseForm enforces the upload ceiling and parses the multipart body. It
// writes the error response itself and reports whether parsing succeeded.
func (h *ConversionHandler) parseForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	if h.maxUploadBytes > 0 {
		if r.ContentLength > h.maxUploadBytes {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "File is too large.")
			return nil, false
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "File is too large.")
			return nil, false
		}
		h.logger.WithContext(r.Context()).Debug().Err(err).Msg("Malformed multipart body")
		h.writeError(w, http.StatusBadRequest, "invalid_form", "No files selected.")
		return nil, false
	}
	return r.MultipartForm, true
}

func (h *ConversionHandler) fail(w http.ResponseWriter, r *http.Request, responder *delivery.HTTPResponder, err error) {
	logger := h.logger.WithContext(r.Context())
	if responder.Started() {
		logger.Warn().Err(err).Msg("Delivery interrupted after response started")
		return
	}

	if de, ok := domain.AsDomainError(err); ok && de.Type != domain.ErrorTypeValidation {
		logger.Error().Err(err).Str("reason", string(de.Reason)).Msg("Conversion request failed")
	}
	h.writeDomainError(w, err)
}

func (h *ConversionHandler) writeDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		h.writeError(w, http.StatusServiceUnavailable, "timeout", "The conversion took too long.")
		return
	}
	if errors.Is(err, context.Canceled) {
		h.writeError(w, http.StatusServiceUnavailable, "cancelled", "The request was cancelled.")
		return
	}

	de, ok := domain.AsDomainError(err)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "internal", "Internal server error.")
		return
	}

	status := http.StatusInternalServerError
	switch de.Type {
	case domain.ErrorTypeValidation:
		status = http.StatusBadRequest
	case domain.ErrorTypeConversion:
		status = http.StatusUnprocessableEntity
	}
	code := string(de.Reason)
	if code == "" {
		code = string(de.Type)
	}
	h.writeError(w, status, code, de.UserMessage())
}

func (h *ConversionHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}

func uploadedFiles(headers []*multipart.FileHeader) []domain.UploadedFile {
	files := make([]domain.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, domain.UploadedFile{
			Filename: fh.Filename,
			Size:     fh.Size,
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return files
}
