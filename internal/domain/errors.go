package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConversion ErrorType = "conversion"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeConfig     ErrorType = "config"
)

// Reason narrows an ErrorType down to the specific failure.
type Reason string

const (
	ReasonNoFiles         Reason = "no_files"
	ReasonInvalidType     Reason = "invalid_type"
	ReasonNoValidFiles    Reason = "no_valid_files"
	ReasonEmptyOutput     Reason = "empty_output"
	ReasonEncodeFailed    Reason = "encode_failed"
	ReasonDecodeFailed    Reason = "decode_failed"
	ReasonPackageFailed   Reason = "package_failed"
	ReasonWorkspaceCreate Reason = "workspace_create"
	ReasonWorkspaceRemove Reason = "workspace_remove"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type     ErrorType
	Reason   Reason
	Filename string // offending upload, validation errors only
	Message  string
	Err      error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if e.Filename != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Filename)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Type, e.Reason, msg, e.Err)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Type, e.Reason, msg)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text that is safe to show to the client. Conversion
// and storage failures never expose the underlying cause.
func (e *DomainError) UserMessage() string {
	switch e.Type {
	case ErrorTypeValidation:
		switch e.Reason {
		case ReasonNoFiles:
			return "No files selected."
		case ReasonInvalidType:
			if e.Filename != "" {
				return fmt.Sprintf("Invalid file type: %s.", e.Filename)
			}
			return "Invalid file type."
		case ReasonNoValidFiles:
			return "No valid files were uploaded."
		}
		return e.Message
	case ErrorTypeConversion:
		if e.Reason == ReasonEmptyOutput {
			return "Could not extract any images from the PDF."
		}
		return "An error occurred during conversion."
	default:
		return "Internal server error."
	}
}

// NewError creates a new domain error
func NewError(errType ErrorType, reason Reason, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Reason:  reason,
		Message: message,
		Err:     err,
	}
}

// Common error constructors

func ValidationError(reason Reason, filename string) *DomainError {
	e := NewError(ErrorTypeValidation, reason, validationMessages[reason], nil)
	e.Filename = filename
	return e
}

func ConversionError(reason Reason, message string, err error) *DomainError {
	return NewError(ErrorTypeConversion, reason, message, err)
}

func StorageError(reason Reason, message string, err error) *DomainError {
	return NewError(ErrorTypeStorage, reason, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, "", message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, "", message, err)
}

var validationMessages = map[Reason]string{
	ReasonNoFiles:      "no files uploaded",
	ReasonInvalidType:  "unsupported file type",
	ReasonNoValidFiles: "no uploaded file matched the ordering manifest",
}

// AsDomainError extracts the first DomainError in err's chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func IsValidation(err error) bool { return isType(err, ErrorTypeValidation) }

func IsConversion(err error) bool { return isType(err, ErrorTypeConversion) }

func IsStorage(err error) bool { return isType(err, ErrorTypeStorage) }

// HasReason reports whether err carries the given reason.
func HasReason(err error, reason Reason) bool {
	de, ok := AsDomainError(err)
	return ok && de.Reason == reason
}

func isType(err error, t ErrorType) bool {
	de, ok := AsDomainError(err)
	return ok && de.Type == t
}
