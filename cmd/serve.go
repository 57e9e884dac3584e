package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/grovetools/wagate/cli"
	"github.com/grovetools/wagate/internal/gateway/messaging"
	"github.com/grovetools/wagate/internal/gateway/metrics"
	"github.com/grovetools/wagate/internal/gateway/notify"
	"github.com/grovetools/wagate/internal/gateway/pidfile"
	"github.com/grovetools/wagate/internal/gateway/server"
	"github.com/grovetools/wagate/internal/gateway/sessions"
	"github.com/grovetools/wagate/internal/gateway/store"
	"github.com/grovetools/wagate/logging"
	"github.com/grovetools/wagate/pkg/paths"
	"github.com/grovetools/wagate/pkg/profiling"
	"github.com/grovetools/wagate/pkg/watch"
	"github.com/grovetools/wagate/pkg/whatsapp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewServeCmd returns the command that runs the gateway in the foreground.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		Long: `Start the gateway in the foreground. Stored sessions are recovered before the
HTTP listener accepts requests. SIGINT or SIGTERM stops it gracefully; stored
sessions are kept for the next start.`,
	}
	cmd.Flags().StringP("listen", "l", "", "Override the listen address")
	profiler := profiling.NewCobraProfiler()
	profiler.AddFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, profiler)
	}
	return cmd
}

func runServe(cmd *cobra.Command, profiler *profiling.CobraProfiler) error {
	cfg, cfgPath, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if err := profiler.Start(logging.NewLogger("profiling")); err != nil {
		return err
	}
	defer profiler.Stop()
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}
	logger := cli.GetLogger(cmd, "wagate")

	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create wagate directories: %w", err)
	}

	// 1. Acquire lock
	lock, err := pidfile.Acquire(paths.PidFilePath(), pidfile.Record{
		Listen: cfg.Server.Listen,
		Store:  cfg.Store.Path,
	})
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Errorf("Failed to release pidfile: %v", err)
		}
	}()

	// 2. Store, metrics and the notification hub
	st, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	hub := notify.NewHub(notify.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m,
		Logger:         logging.NewLogger("notify"),
	})

	// 3. Session manager
	factoryOpts := whatsapp.OptionsFrom(cfg.Client)
	factoryOpts.Logger = logging.NewLogger("whatsapp")
	manager := sessions.New(sessions.Options{
		Store:          st,
		Factory:        whatsapp.NewFactory(factoryOpts),
		Publisher:      hub,
		RecoverCorrupt: cfg.Store.RecoverCorrupt,
		Metrics:        m,
		Logger:         logging.NewLogger("sessions"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := manager.Run(loopCtx); err != nil {
			logger.WithError(err).Error("Session manager loop failed")
		}
	}()
	// Runs on every return path, including startup failures below.
	shutdownSessions := stopSessions(manager, stopLoop, loopDone, cfg.Server.ShutdownTimeout.Duration, logger)
	defer shutdownSessions()

	if err := manager.RecoverAll(ctx); err != nil {
		return fmt.Errorf("failed to recover sessions: %w", err)
	}

	// 4. Messaging gateway and HTTP server
	gwOpts := messaging.OptionsFrom(cfg.Gateway)
	gwOpts.Metrics = m
	gw, err := messaging.New(manager, gwOpts)
	if err != nil {
		return err
	}
	defer gw.Close()

	srv := server.New(cfg.Server, server.Options{
		Sessions:  manager,
		Messenger: gw,
		Hub:       hub,
		Metrics:   m,
		StorePath: st.Path(),
	})
	addr, err := srv.Listen()
	if err != nil {
		return err
	}
	if err := lock.SetListen(addr.String()); err != nil {
		logger.WithError(err).Warn("Failed to record listen address")
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	if cfgPath != "" {
		watcher, err := watch.NewConfigWatcher(cfgPath, 0, watch.ApplyLogLevel)
		if err != nil {
			logger.WithError(err).Warn("Config hot reload disabled")
		} else {
			defer watcher.Close()
			go watcher.Start(ctx)
		}
	}

	logger.WithField("pid", os.Getpid()).WithField("store", st.Path()).Info("Gateway started")

	// 5. Wait for a signal or a listener failure
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Received stop signal")
	case runErr = <-serveErr:
		if runErr != nil {
			logger.WithError(runErr).Error("Server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
	hub.Close()
	shutdownSessions()

	logger.Info("Gateway stopped")
	return runErr
}

// stopSessions returns a func that destroys the manager's clients and stops
// its loop. Only the first call does anything.
func stopSessions(manager *sessions.Manager, stopLoop context.CancelFunc, loopDone <-chan struct{}, timeout time.Duration, logger *logrus.Entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := manager.Shutdown(ctx); err != nil {
				logger.Errorf("Session shutdown error: %v", err)
			}
			stopLoop()
			<-loopDone
		})
	}
}
