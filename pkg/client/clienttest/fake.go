// Package clienttest provides an in-memory client.Client for tests.
package clienttest

import (
	"context"
	"sync"

	"github.com/grovetools/wagate/pkg/client"
)

// SentMessage records one SendMessage call.
type SentMessage struct {
	Address string
	Body    string
}

// Fake is a scriptable client.Client. Zero values behave like a healthy
// client with no chats where every address is registered.
type Fake struct {
	ID string

	// Behaviour knobs. Set them before handing the fake to the code under test.
	InitErr      error
	SendErr      error
	RegisterErr  error
	ChatsErr     error
	Unregistered map[string]bool
	Chats        []client.Chat
	AccountInfo  client.Info
	// OnInitialize runs inside Initialize, e.g. to emit a scripted signal sequence.
	OnInitialize func(f *Fake)
	// BlockInitialize makes Initialize wait until its context is cancelled.
	BlockInitialize bool
	// OnDestroy runs inside Destroy before it returns.
	OnDestroy func(f *Fake)

	mu          sync.Mutex
	handler     func(client.Signal)
	initialized int
	destroyed   int
	sent        []SentMessage
	checked     []string
	chatCalls   int
}

var _ client.Client = (*Fake)(nil)

// New returns a fake for id.
func New(id string) *Fake {
	return &Fake{ID: id}
}

func (f *Fake) Initialize(ctx context.Context) error {
	f.mu.Lock()
	f.initialized++
	hook := f.OnInitialize
	f.mu.Unlock()

	if f.InitErr != nil {
		return f.InitErr
	}
	if f.BlockInitialize {
		<-ctx.Done()
		return ctx.Err()
	}
	if hook != nil {
		hook(f)
	}
	return nil
}

func (f *Fake) Destroy() error {
	if f.OnDestroy != nil {
		f.OnDestroy(f)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
	return nil
}

func (f *Fake) SendMessage(ctx context.Context, address, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.sent = append(f.sent, SentMessage{Address: address, Body: body})
	return nil
}

func (f *Fake) IsRegisteredUser(ctx context.Context, address string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, address)
	if f.RegisterErr != nil {
		return false, f.RegisterErr
	}
	return !f.Unregistered[address], nil
}

func (f *Fake) GetChats(ctx context.Context) ([]client.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	if f.ChatsErr != nil {
		return nil, f.ChatsErr
	}
	return f.Chats, nil
}

func (f *Fake) OnSignal(handler func(client.Signal)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

func (f *Fake) Info() client.Info {
	return f.AccountInfo
}

// Emit delivers sig to the registered handler, if any.
func (f *Fake) Emit(sig client.Signal) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(sig)
	}
}

// EmitKind is shorthand for Emit(client.Signal{Kind: kind}).
func (f *Fake) EmitKind(kind client.SignalKind) {
	f.Emit(client.Signal{Kind: kind})
}

// Sent returns every delivered message.
func (f *Fake) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.sent...)
}

// Checked returns every address passed to IsRegisteredUser.
func (f *Fake) Checked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.checked...)
}

// Initialized returns how many times Initialize ran.
func (f *Fake) Initialized() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

// Destroyed returns how many times Destroy ran.
func (f *Fake) Destroyed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

// ExternalCalls counts messaging calls: sends, registration checks and chat listings.
func (f *Fake) ExternalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent) + len(f.checked) + f.chatCalls
}

// Chat is a scriptable client.Chat.
type Chat struct {
	ChatID   string
	ChatName string
	Group    bool
	Messages []client.Message
	Err      error

	mu      sync.Mutex
	fetches int
}

var _ client.Chat = (*Chat)(nil)

func (c *Chat) ID() string    { return c.ChatID }
func (c *Chat) Name() string  { return c.ChatName }
func (c *Chat) IsGroup() bool { return c.Group }

func (c *Chat) FetchMessages(ctx context.Context, limit int) ([]client.Message, error) {
	c.mu.Lock()
	c.fetches++
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	msgs := c.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]client.Message(nil), msgs...), nil
}

// Fetches returns how many times FetchMessages ran.
func (c *Chat) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

// Factory hands out fakes and remembers them by id.
type Factory struct {
	// NewErr makes New fail.
	NewErr error
	// Configure, if set, prepares each new fake.
	Configure func(f *Fake)

	mu        sync.Mutex
	clients   map[string][]*Fake
	forgotten []string
}

var (
	_ client.Factory           = (*Factory)(nil)
	_ client.CredentialRemover = (*Factory)(nil)
)

func (fa *Factory) New(id string) (client.Client, error) {
	if fa.NewErr != nil {
		return nil, fa.NewErr
	}
	f := New(id)
	if fa.Configure != nil {
		fa.Configure(f)
	}
	fa.mu.Lock()
	defer fa.mu.Unlock()
	if fa.clients == nil {
		fa.clients = make(map[string][]*Fake)
	}
	fa.clients[id] = append(fa.clients[id], f)
	return f, nil
}

// Get returns the most recent fake created for id.
func (fa *Factory) Get(id string) *Fake {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	list := fa.clients[id]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// Created returns how many clients were built for id.
func (fa *Factory) Created(id string) int {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return len(fa.clients[id])
}

// Forget records that the credentials of id were dropped.
func (fa *Factory) Forget(id string) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	fa.forgotten = append(fa.forgotten, id)
	return nil
}

// Forgotten returns every id passed to Forget.
func (fa *Factory) Forgotten() []string {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return append([]string(nil), fa.forgotten...)
}
