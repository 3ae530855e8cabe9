// Package extract turns uploaded files into raw text. Format-specific
// extractors register by file type; unsupported types fail per file
// without aborting the batch.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extractor pulls text content out of one file.
type Extractor interface {
	Extract(path string) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(path string) (string, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(path string) (string, error) { return f(path) }

// Registry maps file types to extractors.
type Registry struct {
	byType map[string]Extractor
}

// NewRegistry creates a registry with plain-text formats pre-registered.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Extractor)}
	text := ExtractorFunc(extractText)
	for _, t := range []string{"txt", "md", "text", "markdown"} {
		r.Register(t, text)
	}
	return r
}

// Register adds or replaces the extractor for a file type.
func (r *Registry) Register(fileType string, e Extractor) {
	r.byType[strings.ToLower(fileType)] = e
}

// Extract runs the extractor registered for the file's type.
func (r *Registry) Extract(fileType, path string) (string, error) {
	e, ok := r.byType[strings.ToLower(fileType)]
	if !ok {
		return "", fmt.Errorf("unsupported file type %q", fileType)
	}
	content, err := e.Extract(path)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	return content, nil
}

// DetectType infers a file type from the file name extension, falling
// back to the declared type when there is no extension.
func DetectType(name, declared string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext != "" {
		return ext
	}
	return strings.ToLower(declared)
}

func extractText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
