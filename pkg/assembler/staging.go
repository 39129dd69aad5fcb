package assembler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Staging is a per-run scratch directory for generated documents. It lives
// next to the published tenant directory so the final publish is a rename
// on the same filesystem.
type Staging struct {
	base   string
	tenant string
	dir    string
	files  []string
}

// NewStaging creates a staging directory for a tenant under the output
// base directory.
func NewStaging(base, tenant string) (*Staging, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output base dir: %w", err)
	}
	dir, err := os.MkdirTemp(base, ".staging-"+tenant+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	return &Staging{base: base, tenant: tenant, dir: dir}, nil
}

// Dir returns the staging directory path.
func (s *Staging) Dir() string { return s.dir }

// Files returns the names of the documents staged so far.
func (s *Staging) Files() []string {
	out := make([]string, len(s.files))
	copy(out, s.files)
	return out
}

// WriteDocument serializes a document as indented JSON into the staging
// area.
func (s *Staging) WriteDocument(filename string, doc interface{}) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", filename, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	s.files = append(s.files, filename)
	return nil
}

// Remove deletes a previously staged document, used when a document fails
// validation in tolerant mode after being written.
func (s *Staging) Remove(filename string) error {
	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil && !os.IsNotExist(err) {
		return err
	}
	for i, f := range s.files {
		if f == filename {
			s.files = append(s.files[:i], s.files[i+1:]...)
			break
		}
	}
	return nil
}

// Publish atomically replaces the published tenant directory with the
// staged one via rename swap. The previous output is only removed after
// the swap succeeded.
func (s *Staging) Publish() (string, error) {
	published := filepath.Join(s.base, s.tenant)
	backup := published + ".replaced-" + time.Now().UTC().Format("20060102T150405.000000000")

	hadPrevious := true
	if err := os.Rename(published, backup); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to move previous output aside: %w", err)
		}
		hadPrevious = false
	}

	if err := os.Rename(s.dir, published); err != nil {
		if hadPrevious {
			// restore the previous output, the swap did not happen
			if restoreErr := os.Rename(backup, published); restoreErr != nil {
				return "", fmt.Errorf("failed to publish staged output (%v) and to restore previous output: %w", err, restoreErr)
			}
		}
		return "", fmt.Errorf("failed to publish staged output: %w", err)
	}

	if hadPrevious {
		if err := os.RemoveAll(backup); err != nil {
			return published, fmt.Errorf("published, but failed to remove previous output: %w", err)
		}
	}
	return published, nil
}

// Discard removes the staging directory. Safe to call after Publish, which
// leaves nothing behind to remove.
func (s *Staging) Discard() error {
	return os.RemoveAll(s.dir)
}
