package cmd

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/wagate/internal/gateway/metrics"
	"github.com/grovetools/wagate/internal/gateway/pidfile"
	"github.com/grovetools/wagate/internal/gateway/sessions"
	"github.com/grovetools/wagate/internal/gateway/store"
	"github.com/grovetools/wagate/logging"
	"github.com/grovetools/wagate/pkg/client/clienttest"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/grovetools/wagate/pkg/paths"
	"github.com/grovetools/wagate/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardPublisher struct{}

func (discardPublisher) Publish(n models.Notification) {}

func TestStopSessionsRunsOnce(t *testing.T) {
	factory := &clienttest.Factory{}
	manager := sessions.New(sessions.Options{
		Store:     store.NewFileStore(filepath.Join(t.TempDir(), "sessions.json")),
		Factory:   factory,
		Publisher: discardPublisher{},
		Metrics:   metrics.New(),
		Logger:    logging.NewLogger("serve-test"),
	})
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = manager.Run(loopCtx)
	}()
	require.NoError(t, manager.CreateSession(context.Background(), "a", ""))

	shutdown := stopSessions(manager, stopLoop, loopDone, 2*time.Second, logging.NewLogger("serve-test"))
	shutdown()
	shutdown()

	assert.Equal(t, 1, factory.Get("a").Destroyed())
	assert.False(t, manager.Running())
	select {
	case <-loopDone:
	default:
		t.Fatal("session loop still running")
	}
}

func TestServeCleansUpWhenListenFails(t *testing.T) {
	home := testutil.IsolateHome(t)
	cfgPath := testutil.WriteConfig(t, home, "store:\n  path: \""+filepath.Join(home, "sessions.json")+"\"\n")

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"serve", "--config", cfgPath, "--listen", busy.Addr().String()})
	require.Error(t, root.Execute())

	_, running, err := pidfile.Running(paths.PidFilePath())
	require.NoError(t, err)
	assert.False(t, running)
}
