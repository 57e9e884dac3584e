// Package testutil holds helpers shared by wagate tests.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// IsolateHome points WAGATE_HOME at a fresh temporary directory so paths,
// config discovery and log files never touch the real user directories.
func IsolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("WAGATE_HOME", home)
	t.Setenv("WAGATE_LOG_LEVEL", "")
	return home
}

// WriteConfig writes a wagate.yml with content into dir and returns its path.
func WriteConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "wagate.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// RandomString generates a random hex string of the specified length.
func RandomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}

// RandomSessionID returns an id accepted by the session manager.
func RandomSessionID() string {
	return "test-" + RandomString(8)
}

// WaitFor polls cond until it returns true or timeout passes.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
