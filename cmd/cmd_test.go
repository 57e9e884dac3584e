package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/grovetools/wagate/internal/gateway/pidfile"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/grovetools/wagate/pkg/paths"
	"github.com/grovetools/wagate/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8000", baseURL(":8000"))
	assert.Equal(t, "http://127.0.0.1:9000", baseURL("0.0.0.0:9000"))
	assert.Equal(t, "http://10.0.0.5:8000", baseURL("10.0.0.5:8000"))
	assert.Equal(t, "http://[::1]:8000", baseURL("[::1]:8000"))
}

func TestTailOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wagate.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\n"), 0644))

	cases := map[int]int64{-1: 0, 0: 6, 1: 4, 2: 2, 3: 0, 10: 0}
	for n, want := range cases {
		got, err := tailOffset(path, n)
		require.NoError(t, err)
		assert.Equal(t, want, got, "tail %d", n)
	}

	_, err := tailOffset(filepath.Join(t.TempDir(), "missing.log"), 1)
	assert.Error(t, err)
}

func TestFindLatestLogFileSkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wagate-2026-10-18.log"), []byte("x\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wagate-2026-10-19.log"), nil, 0644))

	got, err := findLatestLogFile(dir)
	require.NoError(t, err)
	assert.Equal(t, "wagate-2026-10-18.log", filepath.Base(got))

	_, err = findLatestLogFile(t.TempDir())
	assert.Error(t, err)
}

func TestPrintLogText(t *testing.T) {
	var buf bytes.Buffer
	printLogText(&buf, `{"time":"2026-10-19T08:30:00Z","level":"info","msg":"Gateway started","component":"wagate","pid":42}`)
	out := buf.String()
	assert.Contains(t, out, "08:30:00")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "Gateway started")
	assert.Contains(t, out, "pid")

	buf.Reset()
	printLogText(&buf, "plain text line")
	assert.Equal(t, "plain text line\n", buf.String())
}

func TestPrintLogJSONWrapsRawLines(t *testing.T) {
	var buf bytes.Buffer
	printLogJSON(&buf, "not json")
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "not json", got["raw_line"])
}

func TestProbeReady(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ready", r.URL.Path)
		if ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("{}"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"session-loop":"session loop stopped","store-dir":"OK"}`))
	}))
	defer srv.Close()

	ok, detail := probeReady(context.Background(), srv.URL)
	assert.True(t, ok)
	assert.Empty(t, detail)

	ready.Store(false)
	ok, detail = probeReady(context.Background(), srv.URL)
	assert.False(t, ok)
	assert.Equal(t, "session-loop: session loop stopped", detail)
}

func TestFetchSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.SessionsResponse{Sessions: []models.SessionRecord{
			{ID: "alpha", Description: "Support", Ready: true},
			{ID: "beta", Description: "Sales"},
		}})
	}))
	defer srv.Close()

	records, err := fetchSessions(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].ID)
	assert.True(t, records[0].Ready)

	var buf bytes.Buffer
	printSessions(&buf, records)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "alpha")
	assert.Contains(t, lines[2], "Sales")
}

func TestFetchSessionsReportsGatewayMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(models.StatusResponse{Message: "gateway is shutting down"})
	}))
	defer srv.Close()

	_, err := fetchSessions(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway is shutting down")
}

func TestPathsCommand(t *testing.T) {
	home := testutil.IsolateHome(t)

	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"paths"})
	require.NoError(t, root.Execute())

	var out PathsOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, filepath.Join(home, "config"), out.ConfigDir)
	assert.Equal(t, filepath.Join(home, "data", "sessions.json"), out.Store)
	assert.Equal(t, filepath.Join(home, "state", "wagate.pid"), out.PidFile)
}

func TestStatusUsesRecordedListenAddress(t *testing.T) {
	home := testutil.IsolateHome(t)
	stale := testutil.WriteConfig(t, home, "server:\n  listen: \"127.0.0.1:1\"\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ready", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	lock, err := pidfile.Acquire(paths.PidFilePath(), pidfile.Record{Store: "/data/sessions.json"})
	require.NoError(t, err)
	defer lock.Release()
	require.NoError(t, lock.SetListen(srv.Listener.Addr().String()))

	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"status", "--json", "--config", stale})
	require.NoError(t, root.Execute())

	var out StatusOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.True(t, out.Running)
	assert.Equal(t, os.Getpid(), out.PID)
	assert.Equal(t, srv.URL, out.URL)
	assert.Equal(t, "/data/sessions.json", out.Store)
	assert.True(t, out.Ready)
}

func TestConfigSchemaCommand(t *testing.T) {
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"config", "schema"})
	require.NoError(t, root.Execute())

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "wagate configuration", doc["title"])
}

func TestConfigValidateCommand(t *testing.T) {
	dir := testutil.IsolateHome(t)
	good := testutil.WriteConfig(t, dir, "server:\n  listen: \":9000\"\n")
	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("gateway:\n  history_window: -1\n"), 0644))

	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"config", "validate", good})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), good)

	root = NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"config", "validate", bad})
	assert.Error(t, root.Execute())
}
