package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/wagate/config"
	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(dir string) Store {
	return map[string]func(dir string) Store{
		"file": func(dir string) Store {
			return NewFileStore(filepath.Join(dir, "sessions.json"))
		},
		"sqlite": func(dir string) Store {
			st, err := OpenSQLite(filepath.Join(dir, "sessions.db"))
			require.NoError(t, err)
			t.Cleanup(func() { st.Close() })
			return st
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := open(t.TempDir())

			records, err := st.Load()
			require.NoError(t, err)
			assert.Empty(t, records)

			want := []models.SessionRecord{
				{ID: "zeta", Description: "last alphabetically, first inserted", Ready: true},
				{ID: "alpha", Description: "sales line"},
			}
			require.NoError(t, st.Save(want))

			got, err := st.Load()
			require.NoError(t, err)
			assert.Equal(t, want, got)

			require.NoError(t, st.Save(want[1:]))
			got, err = st.Load()
			require.NoError(t, err)
			assert.Equal(t, want[1:], got)

			require.NoError(t, st.Save(nil))
			got, err = st.Load()
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestFileStoreCreatesEmptyCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessions.json")
	st := NewFileStore(path)

	records, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, records)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestFileStoreReadsOriginalLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whatsapp-sessions.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`[{"id":"a","description":"A","ready":true},{"id":"b","description":"B","ready":false},{"id":"a","description":"dup","ready":false}]`),
		0644))

	records, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []models.SessionRecord{
		{ID: "a", Description: "A", Ready: true},
		{ID: "b", Description: "B"},
	}, records)
}

func TestFileStoreCorrupt(t *testing.T) {
	tests := map[string]string{
		"not json":    "{{{",
		"wrong shape": `{"id":"a"}`,
		"missing id":  `[{"description":"x"}]`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sessions.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			_, err := NewFileStore(path).Load()
			assert.True(t, errors.Is(err, errors.ErrCodeStoreCorrupt), "got %v", err)
		})
	}
}

func TestFileStoreUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	st := NewFileStore(filepath.Join(blocker, "sessions.json"))
	err := st.Save([]models.SessionRecord{{ID: "a"}})
	assert.True(t, errors.Is(err, errors.ErrCodeStoreUnwritable), "got %v", err)
}

func TestFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st := NewFileStore(filepath.Join(dir, "sessions.json"))
	require.NoError(t, st.Save([]models.SessionRecord{{ID: "a"}}))
	require.NoError(t, st.Save([]models.SessionRecord{{ID: "b"}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sessions.json", entries[0].Name())
}

func TestLoadOrReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	st := NewFileStore(path)

	_, err := LoadOrReset(st, false)
	assert.True(t, errors.Is(err, errors.ErrCodeStoreCorrupt))

	records, err := LoadOrReset(st, true)
	require.NoError(t, err)
	assert.Empty(t, records)

	records, err = st.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	st, err := Open(config.StoreConfig{Driver: "file", Path: filepath.Join(dir, "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, st)

	st, err = Open(config.StoreConfig{Driver: "sqlite", Path: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, st.Close())

	_, err = Open(config.StoreConfig{Driver: "etcd"})
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}
