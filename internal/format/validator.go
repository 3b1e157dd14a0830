// Package format classifies uploads by extension and turns untrusted
// filenames into safe path components.
package format

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/akosicedzkii/pdforever/internal/domain"
)

var imageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
	"tiff": {},
	"bmp":  {},
}

var documentExtensions = map[string]struct{}{
	"pdf": {},
}

// Classify decides the category of filename from its extension alone,
// case-insensitively. Empty names and names without an extension are
// unsupported.
func Classify(filename string) domain.Category {
	ext := Extension(filename)
	if ext == "" {
		return domain.CategoryUnsupported
	}
	if _, ok := imageExtensions[ext]; ok {
		return domain.CategoryImage
	}
	if _, ok := documentExtensions[ext]; ok {
		return domain.CategoryPDF
	}
	return domain.CategoryUnsupported
}

// Extension returns the lower-cased extension of filename without the dot.
// A leading dot alone (".png") does not count as an extension.
func Extension(filename string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}

// ImageExtensions lists the accepted image extensions in sorted order.
func ImageExtensions() []string {
	return sortedKeys(imageExtensions)
}

// Validator checks uploads against an expected category.
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// Require returns a validation error unless filename classifies as want.
func (v *Validator) Require(filename string, want domain.Category) error {
	if Classify(filename) != want {
		return domain.ValidationError(domain.ReasonInvalidType, filename)
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
