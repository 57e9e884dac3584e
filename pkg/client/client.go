// Package client defines the contract between the gateway and a messaging
// client implementation. The gateway never talks to a protocol library directly.
package client

import (
	"context"
	"strings"
	"time"
)

// Address suffixes. Direct chats use "<digits>@c.us", groups "<id>@g.us".
const (
	UserServer  = "c.us"
	GroupServer = "g.us"
)

// SignalKind names an asynchronous lifecycle event raised by a client.
type SignalKind string

const (
	SignalQR            SignalKind = "qr"
	SignalAuthenticated SignalKind = "authenticated"
	SignalReady         SignalKind = "ready"
	SignalAuthFailure   SignalKind = "auth_failure"
	SignalDisconnected  SignalKind = "disconnected"
)

// Signal is one lifecycle event. QR is set for SignalQR; Reason optionally
// explains a failure or disconnect.
type Signal struct {
	Kind   SignalKind
	QR     string
	Reason string
}

// Info describes the account a client is logged in as.
type Info struct {
	PushName string
	Address  string
}

// Message is one entry of a chat's history.
type Message struct {
	ID        string
	Body      string
	FromMe    bool
	Timestamp time.Time
}

// Chat is a conversation known to a client.
type Chat interface {
	ID() string
	Name() string
	IsGroup() bool
	// FetchMessages returns up to limit of the most recent messages, oldest first.
	FetchMessages(ctx context.Context, limit int) ([]Message, error)
}

// Client is one live connection to the messaging network for one account.
//
// Signals are delivered sequentially to the handler registered with OnSignal.
// The handler must not block.
type Client interface {
	// Initialize starts authentication and connection. It may block until the
	// first connection attempt finishes; lifecycle progress is reported through signals.
	Initialize(ctx context.Context) error
	// Destroy releases every resource held by the client. It is safe to call more than once.
	Destroy() error

	SendMessage(ctx context.Context, address, body string) error
	IsRegisteredUser(ctx context.Context, address string) (bool, error)
	GetChats(ctx context.Context) ([]Chat, error)

	OnSignal(handler func(Signal))
	Info() Info
}

// Factory builds a client for a session id. Implementations scope credential
// persistence to the id so restarts resume without a new QR scan.
type Factory interface {
	New(id string) (Client, error)
}

// CredentialRemover is implemented by factories that can delete the stored
// credentials of an id once its session is gone for good.
type CredentialRemover interface {
	Forget(id string) error
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(id string) (Client, error)

// New calls f(id).
func (f FactoryFunc) New(id string) (Client, error) {
	return f(id)
}

// GroupAddress returns the address of a group chat from its id. Addresses
// that already carry a server suffix are returned unchanged.
func GroupAddress(id string) string {
	if strings.Contains(id, "@") {
		return id
	}
	return id + "@" + GroupServer
}

// IsGroupAddress reports whether address names a group chat.
func IsGroupAddress(address string) bool {
	return strings.HasSuffix(address, "@"+GroupServer)
}
