// Package corpus loads plain-text documents from a directory tree. A file
// becomes a document whose ID is the file name without its extension, so the
// same file maps to the same document across passes.
package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/shirabe/internal/models"
)

// Loader reads corpus files from a root directory.
type Loader struct {
	root       string
	extensions []string
}

// NewLoader creates a loader for the given root. extensions filters which
// files are loaded (empty = all).
func NewLoader(root string, extensions []string) *Loader {
	return &Loader{root: root, extensions: extensions}
}

// Root returns the corpus root directory.
func (l *Loader) Root() string {
	return l.root
}

// Load walks the corpus root and returns an input per matching file.
// Unreadable files are skipped; a missing root is an error.
func (l *Loader) Load() ([]*models.DocumentInput, error) {
	if _, err := os.Stat(l.root); err != nil {
		return nil, fmt.Errorf("corpus directory unavailable: %w", err)
	}
	var inputs []*models.DocumentInput
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !MatchExtension(path, l.extensions) {
			return nil
		}
		input, err := l.LoadFile(path)
		if err != nil {
			return nil
		}
		inputs = append(inputs, input)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus: %w", err)
	}
	return inputs, nil
}

// LoadFile reads one file into a document input.
func (l *Loader) LoadFile(path string) (*models.DocumentInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &models.DocumentInput{
		ID:    DocID(path),
		Title: filepath.Base(path),
		Text:  string(data),
		Metadata: map[string]interface{}{
			"path": path,
		},
	}, nil
}

// DocID derives the document ID for a corpus file: the base name without
// its extension.
func DocID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// MatchExtension reports whether path's extension is in extensions.
// An empty extension list matches everything.
func MatchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
