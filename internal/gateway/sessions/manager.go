// Package sessions owns every live session and the persisted collection.
//
// All mutations run as tasks on a single event loop goroutine (Run), so client
// callbacks and API commands never interleave their read-modify-write
// sequences. Calls into messaging clients (Initialize, Destroy, sends) never
// run on the loop.
package sessions

import (
	"context"
	"fmt"
	"regexp"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/internal/gateway/lifecycle"
	"github.com/grovetools/wagate/internal/gateway/metrics"
	"github.com/grovetools/wagate/internal/gateway/registry"
	"github.com/grovetools/wagate/internal/gateway/store"
	"github.com/grovetools/wagate/pkg/client"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/sirupsen/logrus"
)

// idPattern restricts ids to characters that are safe in credential store paths.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

const taskQueueSize = 256

// Options configures a Manager.
type Options struct {
	Store     store.Store
	Factory   client.Factory
	Publisher lifecycle.Publisher
	// RecoverCorrupt resets a corrupt store to empty instead of failing.
	RecoverCorrupt bool
	Metrics        *metrics.Metrics
	Logger         *logrus.Entry
}

// Manager is the session lifecycle and persistence manager.
type Manager struct {
	store          store.Store
	factory        client.Factory
	publisher      lifecycle.Publisher
	recoverCorrupt bool
	metrics        *metrics.Metrics
	log            *logrus.Entry
	bridge         *lifecycle.Bridge

	tasks   chan func()
	stopped chan struct{}
	started atomic.Bool
	running atomic.Bool
	workers sync.WaitGroup

	// clientCtx bounds every Initialize; Shutdown cancels it first.
	clientCtx     context.Context
	cancelClients context.CancelFunc

	// Owned by the loop goroutine.
	registry *registry.Registry
	records  []models.SessionRecord
	loaded   bool
	dirty    bool
	closing  bool
	// forgetting holds ids whose credentials are still being removed.
	forgetting map[string]struct{}
}

// New creates a manager. Call Run to start its event loop.
func New(opts Options) *Manager {
	m := &Manager{
		store:          opts.Store,
		factory:        opts.Factory,
		publisher:      opts.Publisher,
		recoverCorrupt: opts.RecoverCorrupt,
		metrics:        opts.Metrics,
		log:            opts.Logger,
		tasks:          make(chan func(), taskQueueSize),
		stopped:        make(chan struct{}),
		registry:       registry.New(),
		forgetting:     make(map[string]struct{}),
	}
	m.clientCtx, m.cancelClients = context.WithCancel(context.Background())
	m.bridge = lifecycle.NewBridge(loopHost{m}, opts.Publisher, opts.Metrics, opts.Logger)
	return m
}

// Bridge returns the lifecycle bridge, e.g. to replace its QR renderer.
func (m *Manager) Bridge() *lifecycle.Bridge {
	return m.bridge
}

// Run drains the task queue until ctx is done. Client startup is cancelled
// when the loop stops.
func (m *Manager) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return fmt.Errorf("session manager loop can only run once")
	}
	defer close(m.stopped)
	defer m.cancelClients()
	m.running.Store(true)

	m.log.Debug("Session manager loop started")
	for {
		select {
		case <-ctx.Done():
			m.running.Store(false)
			m.log.Debug("Session manager loop stopped")
			return nil
		case task := <-m.tasks:
			m.runTask(task)
		}
	}
}

// Running reports whether the event loop is active.
func (m *Manager) Running() bool {
	return m.running.Load()
}

func (m *Manager) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.WithField("panic", r).WithField("stack", string(debug.Stack())).
				Error("Recovered from panic in session manager task")
		}
	}()
	task()
}

// do runs fn on the loop and waits for it to finish.
func (m *Manager) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}

	select {
	case m.tasks <- task:
	case <-m.stopped:
		return errors.New(errors.ErrCodeShuttingDown, "session manager is not running")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-m.stopped:
		return errors.New(errors.ErrCodeShuttingDown, "session manager is not running")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues fn without waiting. It is used by client callbacks and must
// never be called from the loop itself.
func (m *Manager) post(fn func()) {
	select {
	case m.tasks <- fn:
	case <-m.stopped:
	}
}

// Ping round-trips an empty task through the loop.
func (m *Manager) Ping(ctx context.Context) error {
	return m.do(ctx, func() {})
}

// ValidateID rejects ids that are empty or unsafe as a path component.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return errors.InvalidInput("session id must be 1-64 characters of letters, digits, '-' or '_'").
			WithDetail("id", id)
	}
	return nil
}

// RecoverAll starts a live session for every stored record that has none.
// Calling it again is a no-op for sessions that are already live.
func (m *Manager) RecoverAll(ctx context.Context) error {
	var err error
	if doErr := m.do(ctx, func() { err = m.recoverAll() }); doErr != nil {
		return doErr
	}
	return err
}

func (m *Manager) recoverAll() error {
	if err := m.ensureLoaded(); err != nil {
		return err
	}
	recovered := 0
	for _, rec := range models.CloneRecords(m.records) {
		if _, ok := m.registry.Get(rec.ID); ok {
			continue
		}
		if err := ValidateID(rec.ID); err != nil {
			m.log.WithError(err).WithField("id", rec.ID).Warn("Skipping stored session with invalid id")
			continue
		}
		if err := m.createSession(rec.ID, rec.Description); err != nil {
			m.log.WithError(err).WithField("id", rec.ID).Error("Failed to recover session")
			continue
		}
		recovered++
	}
	m.log.WithField("recovered", recovered).WithField("live", m.registry.Len()).Info("Session recovery finished")
	return nil
}

// CreateSession creates and starts a session for id unless one is already
// live. The record is persisted before authentication begins.
func (m *Manager) CreateSession(ctx context.Context, id, description string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	var err error
	if doErr := m.do(ctx, func() {
		if err = m.ensureLoaded(); err == nil {
			err = m.createSession(id, description)
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// createSession runs on the loop; the registry check and insert are one step.
func (m *Manager) createSession(id, description string) error {
	if m.closing {
		return errors.New(errors.ErrCodeShuttingDown, "session manager is shutting down")
	}
	if _, ok := m.forgetting[id]; ok {
		return errors.New(errors.ErrCodeShuttingDown, "session is still being removed, retry shortly").
			WithDetail("id", id)
	}
	if existing, ok := m.registry.Get(id); ok {
		if !existing.Status.Terminal() {
			m.log.WithField("id", id).Debug("Session already live, ignoring create")
			return nil
		}
		// A failed client is replaced by a fresh one.
		m.registry.Remove(id)
		m.destroyAsync(id, existing.Client, false)
	}

	c, err := m.factory.New(id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create messaging client").WithDetail("id", id)
	}

	idx := models.FindRecord(m.records, id)
	if idx >= 0 {
		description = m.records[idx].Description
	}

	c.OnSignal(func(sig client.Signal) {
		m.post(func() { m.onSignal(id, c, sig) })
	})

	live := &registry.LiveSession{ID: id, Description: description, Client: c, Status: models.StatusPending}
	if err := m.registry.Put(id, live); err != nil {
		// ALREADY_REGISTERED means another create won; never start a duplicate.
		return nil
	}
	m.metrics.SetLiveSessions(m.registry.Len())

	if idx < 0 {
		m.records = append(m.records, models.SessionRecord{ID: id, Description: description})
		m.persist()
	}

	m.initializeAsync(id, c)
	m.log.WithField("id", id).Info("Session created")
	return nil
}

func (m *Manager) initializeAsync(id string, c client.Client) {
	ctx := m.clientCtx
	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		if err := c.Initialize(ctx); err != nil {
			m.post(func() { m.onInitializeFailed(id, c, err) })
		}
	}()
}

// destroyAsync releases c off the loop. With forget set, stored credentials
// are removed too when the factory supports it, and id cannot be created
// again until that has finished.
func (m *Manager) destroyAsync(id string, c client.Client, forget bool) {
	if forget {
		m.forgetting[id] = struct{}{}
	}
	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		if err := c.Destroy(); err != nil {
			m.log.WithError(err).WithField("id", id).Warn("Failed to destroy messaging client")
		}
		if !forget {
			return
		}
		if remover, ok := m.factory.(client.CredentialRemover); ok {
			if err := remover.Forget(id); err != nil {
				m.log.WithError(err).WithField("id", id).Warn("Failed to remove stored credentials")
			}
		}
		m.post(func() { delete(m.forgetting, id) })
	}()
}

func (m *Manager) onInitializeFailed(id string, c client.Client, err error) {
	live, ok := m.registry.Get(id)
	if !ok || live.Client != c {
		return
	}
	live.Status = models.StatusAuthFailed
	m.log.WithError(err).WithField("id", id).Error("Messaging client failed to initialize")
	m.publisher.Publish(models.Notification{
		SessionID: id,
		Kind:      models.EventMessage,
		Payload:   models.MessagePayload{ID: id, Text: lifecycle.TextAuthFailure},
	})
}

func (m *Manager) onSignal(id string, c client.Client, sig client.Signal) {
	if m.closing {
		m.log.WithField("id", id).WithField("signal", sig.Kind).Debug("Dropping signal during shutdown")
		return
	}
	live, ok := m.registry.Get(id)
	if !ok || live.Client != c {
		m.log.WithField("id", id).WithField("signal", sig.Kind).Debug("Dropping signal from retired client")
		return
	}
	_ = m.bridge.Handle(id, sig)
}

// Snapshot returns the stored records with ready reflecting live state for
// every registered id.
func (m *Manager) Snapshot(ctx context.Context) ([]models.SessionRecord, error) {
	var (
		out []models.SessionRecord
		err error
	)
	if doErr := m.do(ctx, func() {
		if err = m.ensureLoaded(); err != nil {
			return
		}
		out = models.CloneRecords(m.records)
		for i := range out {
			if live, ok := m.registry.Get(out[i].ID); ok {
				out[i].Ready = live.Status == models.StatusReady
			}
		}
	}); doErr != nil {
		return nil, doErr
	}
	return out, err
}

// Status returns the live status of id.
func (m *Manager) Status(ctx context.Context, id string) (models.Status, error) {
	var (
		status models.Status
		found  bool
	)
	if err := m.do(ctx, func() {
		if live, ok := m.registry.Get(id); ok {
			status, found = live.Status, true
		}
	}); err != nil {
		return "", err
	}
	if !found {
		return "", errors.SessionNotFound(id)
	}
	return status, nil
}

// Lookup returns the live client for id.
func (m *Manager) Lookup(ctx context.Context, id string) (client.Client, error) {
	var c client.Client
	if err := m.do(ctx, func() {
		if live, ok := m.registry.Get(id); ok {
			c = live.Client
		}
	}); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.SessionNotFound(id)
	}
	return c, nil
}

// Shutdown destroys every live client and waits for background client work.
// Records are kept so the next start recovers the sessions.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancelClients()

	var live []*registry.LiveSession
	if err := m.do(ctx, func() {
		m.closing = true
		live = m.registry.List()
		for _, s := range live {
			m.registry.Remove(s.ID)
		}
		m.metrics.SetLiveSessions(0)
	}); err != nil && !errors.Is(err, errors.ErrCodeShuttingDown) {
		return err
	}

	for _, s := range live {
		m.destroyAsync(s.ID, s.Client, false)
	}

	done := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.log.WithField("destroyed", len(live)).Info("Session manager shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ensureLoaded reads the collection on first use. Afterwards memory is authoritative.
func (m *Manager) ensureLoaded() error {
	if m.loaded {
		return nil
	}
	records, err := store.LoadOrReset(m.store, m.recoverCorrupt)
	if err != nil {
		return err
	}
	m.records = records
	m.loaded = true
	return nil
}

// persist writes the whole collection. A failure leaves memory authoritative;
// the next mutation writes the full collection again.
func (m *Manager) persist() {
	if err := m.store.Save(models.CloneRecords(m.records)); err != nil {
		m.dirty = true
		m.metrics.StoreWriteFailed()
		m.log.WithError(err).WithField("path", m.store.Path()).Error("Failed to persist session collection")
		return
	}
	if m.dirty {
		m.log.WithField("path", m.store.Path()).Info("Session collection persisted again")
	}
	m.dirty = false
}

// loopHost exposes manager state to the lifecycle bridge. Its methods run on the loop.
type loopHost struct {
	m *Manager
}

func (h loopHost) Status(id string) (models.Status, bool) {
	live, ok := h.m.registry.Get(id)
	if !ok {
		return "", false
	}
	return live.Status, true
}

func (h loopHost) SetStatus(id string, status models.Status) {
	h.m.registry.SetStatus(id, status)
}

func (h loopHost) MarkReady(id string) {
	m := h.m
	idx := models.FindRecord(m.records, id)
	if idx < 0 {
		desc := ""
		if live, ok := m.registry.Get(id); ok {
			desc = live.Description
		}
		m.records = append(m.records, models.SessionRecord{ID: id, Description: desc})
		idx = len(m.records) - 1
	}
	m.records[idx].Ready = true
	m.persist()
}

// HandleDisconnect removes the live session and its record and releases the
// client. Disconnection is permanent; observers are told via remove-session.
func (h loopHost) HandleDisconnect(id string) {
	m := h.m
	if live, ok := m.registry.Get(id); ok {
		m.registry.Remove(id)
		m.destroyAsync(id, live.Client, true)
		m.metrics.SetLiveSessions(m.registry.Len())
	}
	if idx := models.FindRecord(m.records, id); idx >= 0 {
		m.records = append(m.records[:idx], m.records[idx+1:]...)
		m.persist()
	}
	m.log.WithField("id", id).Info("Session removed after disconnect")
}
