package models

// EventKind names a notification pushed to observers over the notification channel.
type EventKind string

const (
	EventInit          EventKind = "init"
	EventQR            EventKind = "qr"
	EventReady         EventKind = "ready"
	EventAuthenticated EventKind = "authenticated"
	EventMessage       EventKind = "message"
	EventRemoveSession EventKind = "remove-session"

	// EventCreateSession is the only command observers send to the server.
	EventCreateSession EventKind = "create-session"
)

// Notification is the normalized form of every lifecycle effect that leaves the gateway.
type Notification struct {
	SessionID string      `json:"sessionId"`
	Kind      EventKind   `json:"kind"`
	Payload   interface{} `json:"payload"`
}

// Envelope is the frame exchanged on the websocket notification channel.
type Envelope struct {
	Event EventKind   `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// IDPayload is the payload of ready and authenticated events.
type IDPayload struct {
	ID string `json:"id"`
}

// QRPayload carries a rendered QR code for a session awaiting scan.
type QRPayload struct {
	ID  string `json:"id"`
	Src string `json:"src"`
}

// MessagePayload carries a human-readable status line for a session.
type MessagePayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// CreateSessionPayload is sent by observers to request a new session.
type CreateSessionPayload struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}
