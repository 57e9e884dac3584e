package whatsapp

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/wagate/config"
	"github.com/grovetools/wagate/logging"
	"github.com/grovetools/wagate/pkg/client"
	"github.com/grovetools/wagate/version"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow/store"
)

const defaultConnectTimeout = 2 * time.Minute

// deviceName is shown in the phone's list of linked devices.
const deviceName = "wagate"

var osInfoOnce sync.Once

// Options configures every client built by a Factory.
type Options struct {
	// DataDir holds one device database per session id.
	DataDir string
	// HistoryLimit caps the messages remembered per chat.
	HistoryLimit int
	// RetryMaxInterval caps the backoff between connect attempts.
	RetryMaxInterval time.Duration
	// ConnectTimeout bounds all connect attempts of one Initialize.
	ConnectTimeout time.Duration
	Logger         *logrus.Entry
}

// OptionsFrom maps the client section of the configuration.
func OptionsFrom(cfg config.ClientConfig) Options {
	return Options{
		DataDir:          cfg.DataDir,
		HistoryLimit:     cfg.HistoryLimit,
		RetryMaxInterval: cfg.RetryMaxInterval.Duration,
	}
}

// Factory builds whatsmeow clients with per-id credential stores.
type Factory struct {
	opts Options
}

var _ client.Factory = (*Factory)(nil)

// NewFactory returns a factory writing device databases under opts.DataDir.
func NewFactory(opts Options) *Factory {
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("whatsapp")
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	osInfoOnce.Do(func() {
		store.SetOSInfo(deviceName, version.Triple(version.Version))
	})
	return &Factory{opts: opts}
}

// DevicePath returns the credential database of session id.
func (f *Factory) DevicePath(id string) string {
	return filepath.Join(f.opts.DataDir, "session-"+id+".db")
}

// New creates an uninitialized client for id.
func (f *Factory) New(id string) (client.Client, error) {
	if err := os.MkdirAll(f.opts.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create device directory: %w", err)
	}
	return newClient(id, f.DevicePath(id), f.opts), nil
}

// Forget deletes the stored credentials of id.
func (f *Factory) Forget(id string) error {
	path := f.DevicePath(id)
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
