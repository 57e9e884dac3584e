package models

// SendMessageRequest is the body of POST /send-message.
type SendMessageRequest struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
	Group     bool   `json:"group"`
}

// ListGroupRequest is the input of GET /list-group.
type ListGroupRequest struct {
	ID string `json:"id"`
}

// StatusResponse is the envelope every API call answers with.
type StatusResponse struct {
	Status  bool    `json:"status"`
	Message string  `json:"message"`
	Groups  []Group `json:"groups,omitempty"`
}

// SessionsResponse is returned by GET /sessions.
type SessionsResponse struct {
	Sessions []SessionRecord `json:"sessions"`
}
