package lifecycle

import (
	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/internal/gateway/metrics"
	"github.com/grovetools/wagate/pkg/client"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/grovetools/wagate/pkg/qr"
	"github.com/sirupsen/logrus"
)

// Status texts sent to observers in "message" events.
const (
	TextQR            = "QR Code received, scan please!"
	TextReady         = "Whatsapp is ready!"
	TextAuthenticated = "Whatsapp is authenticated!"
	TextAuthFailure   = "Auth failure, restarting..."
	TextDisconnected  = "Whatsapp is disconnected!"
)

// Host is the session state the bridge mutates. Every method is called on the
// session manager's event loop.
type Host interface {
	Status(id string) (models.Status, bool)
	SetStatus(id string, status models.Status)
	// MarkReady sets the stored record's ready flag and persists the collection.
	MarkReady(id string)
	// HandleDisconnect tears the session down and removes its record.
	HandleDisconnect(id string)
}

// Publisher fans notifications out to observers.
type Publisher interface {
	Publish(n models.Notification)
}

// Bridge applies lifecycle signals. Effects happen in a fixed order: store,
// then registry status, then notifications, so a "ready" event is never
// observed before the record says ready.
type Bridge struct {
	host      Host
	publisher Publisher
	machine   Machine
	metrics   *metrics.Metrics
	log       *logrus.Entry

	// RenderQR turns a raw pairing code into an image source.
	RenderQR func(code string) (string, error)
}

// NewBridge wires a bridge to its host and publisher. m may be nil.
func NewBridge(host Host, publisher Publisher, m *metrics.Metrics, log *logrus.Entry) *Bridge {
	return &Bridge{
		host:      host,
		publisher: publisher,
		metrics:   m,
		log:       log,
		RenderQR:  qr.DataURL,
	}
}

// Handle applies sig for session id. Illegal transitions and signals for
// unknown sessions are logged and dropped without side effects.
func (b *Bridge) Handle(id string, sig client.Signal) error {
	b.metrics.SignalReceived(string(sig.Kind))
	log := b.log.WithField("id", id).WithField("signal", sig.Kind)

	current, ok := b.host.Status(id)
	if !ok {
		log.Debug("Ignoring signal for unregistered session")
		return errors.SessionNotFound(id)
	}

	next, err := b.machine.Next(id, current, sig.Kind)
	if err != nil {
		b.metrics.IllegalTransition()
		log.WithField("status", current).Warn("Ignoring illegal lifecycle transition")
		return err
	}

	switch sig.Kind {
	case client.SignalReady:
		b.host.MarkReady(id)
	case client.SignalDisconnected:
		b.host.HandleDisconnect(id)
	}

	if sig.Kind != client.SignalDisconnected {
		b.host.SetStatus(id, next)
	}

	for _, n := range b.notifications(id, sig) {
		b.publisher.Publish(n)
	}

	if sig.Reason != "" {
		log = log.WithField("reason", sig.Reason)
	}
	log.WithField("status", next).Info("Session state changed")
	return nil
}

func (b *Bridge) notifications(id string, sig client.Signal) []models.Notification {
	message := func(text string) models.Notification {
		return models.Notification{SessionID: id, Kind: models.EventMessage, Payload: models.MessagePayload{ID: id, Text: text}}
	}
	idEvent := func(kind models.EventKind) models.Notification {
		return models.Notification{SessionID: id, Kind: kind, Payload: models.IDPayload{ID: id}}
	}

	switch sig.Kind {
	case client.SignalQR:
		src, err := b.RenderQR(sig.QR)
		if err != nil {
			b.log.WithError(err).WithField("id", id).Warn("Failed to render QR code, sending raw code")
			src = sig.QR
		}
		return []models.Notification{
			{SessionID: id, Kind: models.EventQR, Payload: models.QRPayload{ID: id, Src: src}},
			message(TextQR),
		}
	case client.SignalReady:
		return []models.Notification{idEvent(models.EventReady), message(TextReady)}
	case client.SignalAuthenticated:
		return []models.Notification{idEvent(models.EventAuthenticated), message(TextAuthenticated)}
	case client.SignalAuthFailure:
		return []models.Notification{message(TextAuthFailure)}
	case client.SignalDisconnected:
		return []models.Notification{
			message(TextDisconnected),
			{SessionID: id, Kind: models.EventRemoveSession, Payload: id},
		}
	}
	return nil
}
