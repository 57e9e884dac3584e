package store

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/pkg/models"
)

// FileStore keeps the collection as a JSON array of {id, description, ready}.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Load() ([]models.SessionRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if err := s.Save(nil); err != nil {
			return nil, err
		}
		return []models.SessionRecord{}, nil
	}
	if err != nil {
		return nil, errors.StoreCorrupt(s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []models.SessionRecord{}, nil
	}

	var records []models.SessionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.StoreCorrupt(s.path, err)
	}
	for _, r := range records {
		if r.ID == "" {
			return nil, errors.StoreCorrupt(s.path, errors.InvalidInput("record without id"))
		}
	}
	if records == nil {
		records = []models.SessionRecord{}
	}
	return dedupe(records, s.path), nil
}

// Save writes to a temp file in the same directory and renames it over the
// collection, so readers never observe a partial write.
func (s *FileStore) Save(records []models.SessionRecord) error {
	if records == nil {
		records = []models.SessionRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.StoreUnwritable(s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.StoreUnwritable(s.path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.StoreUnwritable(s.path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func(cause error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.StoreUnwritable(s.path, cause)
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.StoreUnwritable(s.path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return errors.StoreUnwritable(s.path, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.StoreUnwritable(s.path, err)
	}
	return nil
}
