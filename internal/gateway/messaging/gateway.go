// Package messaging sends messages and enumerates groups through the live
// client of a session.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/grovetools/wagate/config"
	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/internal/gateway/metrics"
	"github.com/grovetools/wagate/logging"
	"github.com/grovetools/wagate/pkg/client"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/grovetools/wagate/pkg/phone"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
)

// Response texts for successful operations.
const (
	TextSent         = "Message sent successfully."
	TextSentToGroup  = "Message sent to group successfully."
	TextGroupsListed = "Group has to listed."

	textSendFailed      = "Failed to send message."
	textGroupSendFailed = "Failed to send message to group."

	// UnknownGroupName is reported for groups without a subject.
	UnknownGroupName = "Unknown Group"
)

// SessionResolver finds the live client of a session.
type SessionResolver interface {
	Lookup(ctx context.Context, id string) (client.Client, error)
}

// Options tunes the gateway.
type Options struct {
	// Marker is the exact message body that makes a group qualify.
	Marker string
	// HistoryWindow is how many recent messages are inspected per group.
	HistoryWindow int
	// Workers bounds concurrent history fetches across all requests.
	Workers int
	Metrics *metrics.Metrics
	Logger  *logrus.Entry
}

// OptionsFrom maps the gateway section of the configuration.
func OptionsFrom(cfg config.GatewayConfig) Options {
	return Options{
		Marker:        cfg.Marker,
		HistoryWindow: cfg.HistoryWindow,
		Workers:       cfg.ScanWorkers,
	}
}

// Gateway routes API operations to session clients.
type Gateway struct {
	sessions SessionResolver
	opts     Options
	pool     *ants.Pool
	log      *logrus.Entry
}

// New creates a gateway and its history worker pool.
func New(sessions SessionResolver, opts Options) (*Gateway, error) {
	if opts.Marker == "" {
		opts.Marker = config.DefaultMarker
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = config.DefaultHistoryWindow
	}
	if opts.Workers <= 0 {
		opts.Workers = config.DefaultScanWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("messaging")
	}
	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("create history worker pool: %w", err)
	}
	return &Gateway{sessions: sessions, opts: opts, pool: pool, log: opts.Logger}, nil
}

// Close releases the worker pool.
func (g *Gateway) Close() {
	g.pool.Release()
}

// SendMessage delivers body from session id. Group recipients are group ids;
// direct recipients are phone numbers and must be registered on the network.
// It returns the success text for the response.
func (g *Gateway) SendMessage(ctx context.Context, id, recipient, body string, isGroup bool) (string, error) {
	c, err := g.sessions.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(recipient) == "" {
		return "", errors.InvalidInput("recipient is required")
	}

	if isGroup {
		address := client.GroupAddress(recipient)
		if err := c.SendMessage(ctx, address, body); err != nil {
			g.opts.Metrics.MessageResult("group", "failed")
			g.log.WithError(err).WithField("id", id).WithField("to", address).Warn("Group send failed")
			return "", errors.DeliveryFailed(textGroupSendFailed, err)
		}
		g.opts.Metrics.MessageResult("group", "sent")
		return TextSentToGroup, nil
	}

	address, err := phone.Normalize(recipient)
	if err != nil {
		return "", err
	}
	registered, err := c.IsRegisteredUser(ctx, address)
	if err != nil {
		g.opts.Metrics.MessageResult("direct", "failed")
		g.log.WithError(err).WithField("id", id).WithField("to", address).Warn("Registration check failed")
		return "", errors.DeliveryFailed(textSendFailed, err)
	}
	if !registered {
		g.opts.Metrics.MessageResult("direct", "not_registered")
		return "", errors.RecipientNotRegistered(address)
	}
	if err := c.SendMessage(ctx, address, body); err != nil {
		g.opts.Metrics.MessageResult("direct", "failed")
		g.log.WithError(err).WithField("id", id).WithField("to", address).Warn("Send failed")
		return "", errors.DeliveryFailed(textSendFailed, err)
	}
	g.opts.Metrics.MessageResult("direct", "sent")
	return TextSent, nil
}

// ListQualifyingGroups returns the groups of session id whose recent history
// contains a message exactly equal to the marker. Order follows the client's
// chat order.
func (g *Gateway) ListQualifyingGroups(ctx context.Context, id string) ([]models.Group, error) {
	c, err := g.sessions.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	chats, err := c.GetChats(ctx)
	if err != nil {
		g.opts.Metrics.GroupScan("failed")
		return nil, errors.GroupEnumerationFailed(err)
	}

	var groups []client.Chat
	for _, chat := range chats {
		if chat.IsGroup() {
			groups = append(groups, chat)
		}
	}

	qualifies := make([]bool, len(groups))
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for i, chat := range groups {
		i, chat := i, chat
		wg.Add(1)
		task := func() {
			defer wg.Done()
			ok, err := g.hasMarker(ctx, chat)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("fetch history of %s: %w", chat.ID(), err)
				}
				errMu.Unlock()
				return
			}
			qualifies[i] = ok
		}
		if err := g.pool.Submit(task); err != nil {
			wg.Done()
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
		}
	}
	wg.Wait()

	if firstErr != nil {
		g.opts.Metrics.GroupScan("failed")
		g.log.WithError(firstErr).WithField("id", id).Warn("Group enumeration failed")
		return nil, errors.GroupEnumerationFailed(firstErr)
	}

	result := []models.Group{}
	for i, chat := range groups {
		if !qualifies[i] {
			continue
		}
		name := chat.Name()
		if name == "" {
			name = UnknownGroupName
		}
		result = append(result, models.Group{ID: chat.ID(), Name: name})
	}
	g.opts.Metrics.GroupScan("ok")
	return result, nil
}

func (g *Gateway) hasMarker(ctx context.Context, chat client.Chat) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	messages, err := chat.FetchMessages(ctx, g.opts.HistoryWindow)
	if err != nil {
		return false, err
	}
	for _, msg := range messages {
		if msg.Body == g.opts.Marker {
			return true, nil
		}
	}
	return false, nil
}
