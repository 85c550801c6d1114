package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lucid-vigil/hostwatch/pkg/baseline"
	"github.com/lucid-vigil/hostwatch/pkg/errors"
)

// Document is the persisted form of learned state.
type Document struct {
	Baseline baseline.Set      `json:"baseline"`
	Feedback baseline.Feedback `json:"feedback"`
}

// FileStore persists a Document as JSON at a single path.
type FileStore struct {
	path string

	// called after the temp file is complete and before it replaces path
	beforeRename func(tmpPath string) error
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load reads the persisted document. A missing file yields an empty document
// and no error; a malformed one yields an empty document and a persistence
// error the caller may log.
func (s *FileStore) Load() (Document, error) {
	doc := Document{Baseline: baseline.Set{}, Feedback: baseline.Feedback{}}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, errors.NewPersistenceError(s.path, "load", err)
	}

	var parsed Document
	if err := json.Unmarshal(data, &parsed); err != nil {
		return doc, errors.NewPersistenceError(s.path, "load", fmt.Errorf("parsing baseline file: %w", err))
	}
	if parsed.Baseline != nil {
		doc.Baseline = parsed.Baseline
	}
	if parsed.Feedback != nil {
		doc.Feedback = parsed.Feedback
	}
	return doc, nil
}

// Save writes doc to a temp file in the target directory and renames it over
// the target, so readers see either the old or the new file, never a partial one.
func (s *FileStore) Save(doc Document) error {
	if doc.Baseline == nil {
		doc.Baseline = baseline.Set{}
	}
	if doc.Feedback == nil {
		doc.Feedback = baseline.Feedback{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.NewPersistenceError(s.path, "save", fmt.Errorf("serializing baseline: %w", err))
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewPersistenceError(s.path, "save", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.NewPersistenceError(s.path, "save", err)
	}
	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		_ = os.Remove(tmpPath) // best effort
		return errors.NewPersistenceError(s.path, "save", fmt.Errorf("writing baseline file: %w", err))
	}

	if s.beforeRename != nil {
		if err := s.beforeRename(tmpPath); err != nil {
			_ = os.Remove(tmpPath)
			return errors.NewPersistenceError(s.path, "save", err)
		}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.NewPersistenceError(s.path, "save", fmt.Errorf("committing baseline file: %w", err))
	}
	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
