package ingest

import (
	"path/filepath"
	"strings"
)

// DefaultAllowedExtensions mirrors the upload allow-list the service
// ships with; deployments override it via config.
var DefaultAllowedExtensions = []string{"jpg", "jpeg", "png", "gif"}

// Validator is the collaborator-supplied upload allow-list. The zero
// value rejects everything.
type Validator struct {
	extensions map[string]bool
}

func NewValidator(allowedExtensions []string) *Validator {
	v := &Validator{extensions: make(map[string]bool, len(allowedExtensions))}
	for _, ext := range allowedExtensions {
		v.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return v
}

// Allowed reports whether a filename carries a permitted extension. An
// extensionless name is never allowed.
func (v *Validator) Allowed(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	return v.extensions[ext]
}
