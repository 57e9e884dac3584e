package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRecordsGateway(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "wagate.pid")

	lock, err := Acquire(path, Record{Listen: ":8000", Store: "/data/sessions.json"})
	require.NoError(t, err)
	require.NoError(t, lock.SetListen("127.0.0.1:41234"))

	rec, running, err := Running(path)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), rec.PID)
	assert.Equal(t, "127.0.0.1:41234", rec.Listen)
	assert.Equal(t, "/data/sessions.json", rec.Store)
	assert.False(t, rec.Started.IsZero())

	// A live holder blocks a second gateway and names what it owns.
	_, err = Acquire(path, Record{Store: "/data/other.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/data/sessions.json")
	assert.Contains(t, err.Error(), "127.0.0.1:41234")

	require.NoError(t, lock.Release())
	_, running, err = Running(path)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wagate.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(0)), 0644))

	rec, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.PID)

	lock, err := Acquire(path, Record{Store: "sessions.json"})
	require.NoError(t, err)
	rec, err = Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)
	assert.Equal(t, lock.Record().Store, rec.Store)
	assert.True(t, lock.Record().Started.Equal(rec.Started))
}

func TestReleaseKeepsAnotherHoldersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wagate.pid")
	lock, err := Acquire(path, Record{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"pid":0,"listen":":9000"}`), 0644))
	require.NoError(t, lock.Release())

	rec, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", rec.Listen)
}

func TestRunningWithoutFile(t *testing.T) {
	rec, running, err := Running(filepath.Join(t.TempDir(), "missing.pid"))
	require.NoError(t, err)
	assert.False(t, running)
	assert.Zero(t, rec.PID)
}
