// Package store persists the session collection. Every backend honors the same
// contract: Load returns the whole ordered collection and Save atomically
// replaces it.
package store

import (
	"github.com/grovetools/wagate/config"
	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/logging"
	"github.com/grovetools/wagate/pkg/models"
)

// Store is the durable session collection.
type Store interface {
	// Load returns the stored records in order. A missing collection is
	// created empty. Invalid data yields STORE_CORRUPT.
	Load() ([]models.SessionRecord, error)
	// Save replaces the whole collection. I/O failures yield STORE_UNWRITABLE.
	Save(records []models.SessionRecord) error
	// Path is where the collection lives, for diagnostics.
	Path() string
	Close() error
}

// Open builds the backend selected by cfg.Driver.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStore(cfg.Path), nil
	case "sqlite":
		return OpenSQLite(cfg.Path)
	default:
		return nil, errors.ConfigInvalid("unknown store driver " + cfg.Driver)
	}
}

// LoadOrReset loads st. When the data is corrupt and recoverCorrupt is set, the
// collection is reset to empty and the error is logged instead of returned.
func LoadOrReset(st Store, recoverCorrupt bool) ([]models.SessionRecord, error) {
	records, err := st.Load()
	if err == nil {
		return records, nil
	}
	if !recoverCorrupt || !errors.Is(err, errors.ErrCodeStoreCorrupt) {
		return nil, err
	}

	logging.NewLogger("store").WithError(err).WithField("path", st.Path()).
		Error("Session store is corrupt, starting with an empty collection")
	if err := st.Save(nil); err != nil {
		return nil, err
	}
	return []models.SessionRecord{}, nil
}

// dedupe keeps the first record of each id.
func dedupe(records []models.SessionRecord, path string) []models.SessionRecord {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, r := range records {
		if seen[r.ID] {
			logging.NewLogger("store").WithField("id", r.ID).WithField("path", path).
				Warn("Dropping duplicate session record")
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}
