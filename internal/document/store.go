package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"doc-translator/internal/types"
)

// Store 负责结构化文档的读写
// Saves go through a temporary file and a rename so a crash mid-write never
// leaves a truncated document at path.
type Store struct {
	fs afero.Fs
}

// NewStore creates a Store over the given filesystem
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// NewOSStore creates a Store over the real filesystem
func NewOSStore() *Store {
	return NewStore(afero.NewOsFs())
}

// Fs exposes the underlying filesystem
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Save writes doc to path as indented JSON, replacing any previous file
func (s *Store) Save(doc *StructuredDocument, path string) error {
	data, err := Marshal(doc)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrPersistenceFailed, "failed to encode document", path, err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return types.NewAppErrorWithDetails(types.ErrPersistenceFailed, "failed to create output directory", dir, err)
		}
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
		s.fs.Remove(tmp)
		return types.NewAppErrorWithDetails(types.ErrPersistenceFailed, "failed to write document", path, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		s.fs.Remove(tmp)
		return types.NewAppErrorWithDetails(types.ErrPersistenceFailed, "failed to replace document", path, err)
	}
	return nil
}

// Load reads a document previously written by Save
func (s *Store) Load(path string) (*StructuredDocument, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "structured document not found", path, err)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

// Marshal encodes a document the way Save writes it
func Marshal(doc *StructuredDocument) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Unmarshal decodes a document, rejecting null units
func Unmarshal(data []byte) (*StructuredDocument, error) {
	var doc StructuredDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for i, u := range doc.Units {
		if u == nil {
			return nil, fmt.Errorf("unit %d is null", i)
		}
	}
	return &doc, nil
}
