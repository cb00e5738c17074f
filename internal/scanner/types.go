// Package scanner discovers source documents on disk and streams their
// metadata for reconciliation. Text content is loaded lazily so a scan of
// a large corpus stays cheap until a document is actually processed.
package scanner

import (
	"fmt"
	"os"
	"time"

	brewerrors "github.com/jcascante/brew-master-ai/internal/errors"
)

// DefaultMaxFileSize is the maximum file size to index (50MB).
const DefaultMaxFileSize = 50 * 1024 * 1024

// DefaultExtensions is used when a source does not configure its own
// extension list.
var DefaultExtensions = []string{".txt"}

// Source is one configured document root. ContentType labels every
// document found under Path and drives profile selection downstream.
type Source struct {
	// Path is the directory to scan, relative or absolute.
	Path string `yaml:"path" json:"path"`

	// ContentType labels documents from this source: "transcript",
	// "ocr", "manual".
	ContentType string `yaml:"content_type" json:"content_type"`

	// Extensions restricts which files are picked up (default [".txt"]).
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty"`
}

// Document is an immutable metadata snapshot of one file discovered
// during a scan. Text is not loaded until LoadText is called.
type Document struct {
	// Identity is the path relative to the source root, slash-separated.
	// It is the stable key used to match filesystem state against
	// indexed records.
	Identity string

	// Path is the absolute path on disk.
	Path string

	// Name is the base filename, stored as source_file in payloads.
	Name string

	// ContentType is inherited from the source that found the document.
	ContentType string

	Size    int64
	ModTime time.Time
}

// LoadText reads the document content from disk.
func (d Document) LoadText() (string, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return "", brewerrors.New(brewerrors.ErrCodeFileRead,
			fmt.Sprintf("failed to read %s", d.Path), err)
	}
	return string(data), nil
}

// Result is a single scan event: either a discovered document or a
// walk error for one source.
type Result struct {
	Doc *Document
	Err error
}
