// Package whatsapp implements client.Client on top of the whatsmeow
// multi-device protocol library. Each session keeps its device credentials
// in its own SQLite database so restarts resume without a new QR scan.
package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/grovetools/wagate/pkg/client"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

const (
	qrEventCode    = "code"
	qrEventSuccess = "success"
	qrEventTimeout = "timeout"

	signalBuffer = 64
)

// ErrNotInitialized is returned by calls made before Initialize succeeded.
var ErrNotInitialized = errors.New("whatsapp client is not initialized")

// Client is one whatsmeow connection for one session id.
type Client struct {
	id      string
	dbPath  string
	opts    Options
	log     *logrus.Entry
	history *history

	mu        sync.Mutex
	handler   func(client.Signal)
	db        *sql.DB
	wa        *whatsmeow.Client
	cancel    context.CancelFunc
	destroyed bool

	// lifecycle progress of the current connection, guarded by mu
	authenticated bool
	ready         bool

	signals chan client.Signal
	done    chan struct{}
}

var _ client.Client = (*Client)(nil)

func newClient(id, dbPath string, opts Options) *Client {
	c := &Client{
		id:      id,
		dbPath:  dbPath,
		opts:    opts,
		log:     opts.Logger.WithField("session", id),
		history: newHistory(opts.HistoryLimit),
		signals: make(chan client.Signal, signalBuffer),
		done:    make(chan struct{}),
	}
	go c.deliver()
	return c
}

// deliver hands signals to the registered handler one at a time, in order.
func (c *Client) deliver() {
	for {
		select {
		case sig := <-c.signals:
			c.mu.Lock()
			handler := c.handler
			c.mu.Unlock()
			if handler != nil {
				handler(sig)
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) emit(sig client.Signal) {
	c.mu.Lock()
	destroyed := c.destroyed
	c.mu.Unlock()
	if destroyed {
		return
	}
	select {
	case c.signals <- sig:
	case <-c.done:
	}
}

func (c *Client) OnSignal(handler func(client.Signal)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Initialize opens the device store, starts QR pairing when the device has
// no credentials yet and connects with exponential backoff.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return fmt.Errorf("session %s: client already destroyed", c.id)
	}
	if c.wa != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	waLogger := newLogAdapter(c.log.WithField("component", "whatsmeow"))

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", c.dbPath))
	if err != nil {
		return fmt.Errorf("open device store: %w", err)
	}
	container := sqlstore.NewWithDB(db, "sqlite3", waLogger.Sub("Database"))
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return fmt.Errorf("upgrade device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("load device: %w", err)
	}

	wa := whatsmeow.NewClient(device, waLogger.Sub("Client"))
	wa.EnableAutoReconnect = true
	wa.AddEventHandler(c.handleEvent)

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.db, c.wa, c.cancel = db, wa, cancel
	c.mu.Unlock()

	if wa.Store.ID == nil {
		if err := c.startPairing(runCtx, wa); err != nil {
			return err
		}
	}
	return c.connect(ctx, wa)
}

func (c *Client) connect(ctx context.Context, wa *whatsmeow.Client) error {
	b := backoff.NewExponentialBackOff()
	if c.opts.RetryMaxInterval > 0 {
		b.MaxInterval = c.opts.RetryMaxInterval
	}
	b.MaxElapsedTime = c.opts.ConnectTimeout

	attempt := 0
	op := func() error {
		attempt++
		err := wa.Connect()
		if err == nil || errors.Is(err, whatsmeow.ErrAlreadyConnected) {
			return nil
		}
		c.log.WithError(err).WithField("attempt", attempt).Warn("Connect attempt failed")
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("connect session %s: %w", c.id, err)
	}
	return nil
}

// startPairing requests a QR channel and forwards codes as signals. A timed
// out pairing reports an auth failure and starts over until the client is
// destroyed.
func (c *Client) startPairing(ctx context.Context, wa *whatsmeow.Client) error {
	ch, err := wa.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("request QR channel: %w", err)
	}
	go func() {
		for item := range ch {
			switch item.Event {
			case qrEventCode:
				c.emit(client.Signal{Kind: client.SignalQR, QR: item.Code})
			case qrEventSuccess:
				c.log.Debug("QR pairing finished")
			case qrEventTimeout:
				c.emit(client.Signal{Kind: client.SignalAuthFailure, Reason: "QR code timed out"})
				c.restartPairing(ctx)
			default:
				reason := item.Event
				if item.Error != nil {
					reason = item.Error.Error()
				}
				c.emit(client.Signal{Kind: client.SignalAuthFailure, Reason: reason})
			}
		}
	}()
	return nil
}

func (c *Client) restartPairing(ctx context.Context) {
	c.mu.Lock()
	wa := c.wa
	stop := c.destroyed || wa == nil
	c.mu.Unlock()
	if stop || ctx.Err() != nil {
		return
	}

	c.log.Info("Restarting QR pairing")
	wa.Disconnect()
	if err := c.startPairing(ctx, wa); err != nil {
		c.log.WithError(err).Error("Failed to restart QR pairing")
		return
	}
	if err := c.connect(ctx, wa); err != nil {
		c.log.WithError(err).Error("Failed to reconnect for QR pairing")
	}
}

// handleEvent maps protocol events to lifecycle signals and feeds history.
func (c *Client) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.PairSuccess:
		c.markAuthenticated()
	case *events.Connected:
		c.markAuthenticated()
		c.mu.Lock()
		first := !c.ready
		c.ready = true
		c.mu.Unlock()
		if first {
			c.emit(client.Signal{Kind: client.SignalReady})
		}
	case *events.ConnectFailure:
		c.mu.Lock()
		authenticated := c.authenticated
		c.mu.Unlock()
		if !authenticated {
			c.emit(client.Signal{Kind: client.SignalAuthFailure, Reason: fmt.Sprintf("connect failure: %v %s", e.Reason, e.Message)})
		}
	case *events.LoggedOut:
		c.emit(client.Signal{Kind: client.SignalDisconnected, Reason: fmt.Sprintf("logged out: %v", e.Reason)})
	case *events.StreamReplaced:
		c.emit(client.Signal{Kind: client.SignalDisconnected, Reason: "stream replaced by another connection"})
	case *events.TemporaryBan:
		c.emit(client.Signal{Kind: client.SignalDisconnected, Reason: fmt.Sprintf("temporary ban: %v", e.Code)})
	case *events.Disconnected:
		c.log.Debug("Connection dropped, waiting for automatic reconnect")
	case *events.Message:
		c.recordMessage(e)
	case *events.HistorySync:
		c.ingestHistory(e)
	}
}

func (c *Client) markAuthenticated() {
	c.mu.Lock()
	first := !c.authenticated
	c.authenticated = true
	c.mu.Unlock()
	if first {
		c.emit(client.Signal{Kind: client.SignalAuthenticated})
	}
}

func (c *Client) recordMessage(e *events.Message) {
	body := messageText(e.Message)
	if body == "" {
		return
	}
	chat := FromJID(e.Info.Chat)
	c.history.add(chat, client.Message{
		ID:        e.Info.ID,
		Body:      body,
		FromMe:    e.Info.IsFromMe,
		Timestamp: e.Info.Timestamp,
	})
	if !e.Info.IsGroup && !e.Info.IsFromMe {
		c.history.setName(chat, e.Info.PushName)
	}
}

func (c *Client) ingestHistory(e *events.HistorySync) {
	c.mu.Lock()
	wa := c.wa
	c.mu.Unlock()
	if wa == nil || e.Data == nil {
		return
	}
	for _, conv := range e.Data.GetConversations() {
		chatJID, err := types.ParseJID(conv.GetID())
		if err != nil {
			continue
		}
		c.history.setName(FromJID(chatJID), conv.GetName())
		for _, hm := range conv.GetMessages() {
			msg, err := wa.ParseWebMessage(chatJID, hm.GetMessage())
			if err != nil {
				continue
			}
			c.recordMessage(msg)
		}
	}
}

func messageText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if text := m.GetConversation(); text != "" {
		return text
	}
	return m.GetExtendedTextMessage().GetText()
}

func (c *Client) current() (*whatsmeow.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wa == nil || c.destroyed {
		return nil, ErrNotInitialized
	}
	return c.wa, nil
}

func (c *Client) SendMessage(ctx context.Context, address, body string) error {
	wa, err := c.current()
	if err != nil {
		return err
	}
	jid, err := ToJID(address)
	if err != nil {
		return err
	}
	resp, err := wa.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(body)})
	if err != nil {
		return err
	}
	c.history.add(FromJID(jid), client.Message{ID: resp.ID, Body: body, FromMe: true, Timestamp: resp.Timestamp})
	return nil
}

func (c *Client) IsRegisteredUser(ctx context.Context, address string) (bool, error) {
	wa, err := c.current()
	if err != nil {
		return false, err
	}
	jid, err := ToJID(address)
	if err != nil {
		return false, err
	}
	if jid.Server != types.DefaultUserServer {
		return false, nil
	}
	resp, err := wa.IsOnWhatsApp(ctx, []string{"+" + jid.User})
	if err != nil {
		return false, err
	}
	for _, r := range resp {
		if r.IsIn {
			return true, nil
		}
	}
	return false, nil
}

// GetChats lists joined groups first, in server order, then direct chats with
// recorded history.
func (c *Client) GetChats(ctx context.Context) ([]client.Chat, error) {
	wa, err := c.current()
	if err != nil {
		return nil, err
	}
	groups, err := wa.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}

	chats := make([]client.Chat, 0, len(groups))
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		address := FromJID(g.JID)
		seen[address] = true
		chats = append(chats, &chat{id: address, name: g.GroupName.Name, group: true, history: c.history})
	}
	for _, address := range c.history.chats() {
		if seen[address] || client.IsGroupAddress(address) {
			continue
		}
		chats = append(chats, &chat{id: address, name: c.history.name(address), history: c.history})
	}
	return chats, nil
}

func (c *Client) Info() client.Info {
	c.mu.Lock()
	wa := c.wa
	c.mu.Unlock()
	if wa == nil || wa.Store == nil {
		return client.Info{}
	}
	info := client.Info{PushName: wa.Store.PushName}
	if wa.Store.ID != nil {
		info.Address = FromJID(wa.Store.ID.ToNonAD())
	}
	return info
}

// Destroy disconnects and closes the device store. Credentials stay on disk.
func (c *Client) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	wa, db, cancel := c.wa, c.db, c.cancel
	c.wa, c.db, c.cancel = nil, nil, nil
	c.mu.Unlock()

	close(c.done)
	if cancel != nil {
		cancel()
	}
	if wa != nil {
		wa.RemoveEventHandlers()
		wa.Disconnect()
	}
	if db != nil {
		if err := db.Close(); err != nil {
			return fmt.Errorf("close device store: %w", err)
		}
	}
	return nil
}

type chat struct {
	id      string
	name    string
	group   bool
	history *history
}

func (ch *chat) ID() string    { return ch.id }
func (ch *chat) Name() string  { return ch.name }
func (ch *chat) IsGroup() bool { return ch.group }

func (ch *chat) FetchMessages(ctx context.Context, limit int) ([]client.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ch.history.recent(ch.id, limit), nil
}
