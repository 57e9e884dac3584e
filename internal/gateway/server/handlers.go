package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	sessions  Sessions
	messenger Messenger
	log       *logrus.Entry
}

// sendMessage handles POST /send-message.
func (h *handlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSendMessage(r)
	if err != nil {
		writeError(w, err)
		return
	}

	text, err := h.messenger.SendMessage(r.Context(), req.ID, req.Recipient, req.Message, req.Group)
	if err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, http.StatusOK, true, text)
}

// listGroup handles /list-group. The id is read from the query string or,
// for compatibility with older clients, from a JSON or form body.
func (h *handlers) listGroup(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		fields, err := decodeFields(r)
		if err != nil {
			writeError(w, err)
			return
		}
		id = fields.str("id")
	}

	groups, err := h.messenger.ListQualifyingGroups(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	writeJSON(w, http.StatusOK, listGroupResponse{Status: true, Groups: groups, Message: "Group has to listed."})
}

// listGroupResponse always carries the groups array, even when empty.
type listGroupResponse struct {
	Status  bool           `json:"status"`
	Groups  []models.Group `json:"groups"`
	Message string         `json:"message"`
}

// listSessions handles GET /sessions.
func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	records, err := h.sessions.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.SessionsResponse{Sessions: records})
}

// fields is a loosely typed request body, decoded from JSON or a form.
type fields map[string]interface{}

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// flag interprets booleans sent as JSON booleans, numbers or strings.
func (f fields) flag(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "yes", "on":
			return true
		}
	}
	return false
}

func decodeSendMessage(r *http.Request) (models.SendMessageRequest, error) {
	f, err := decodeFields(r)
	if err != nil {
		return models.SendMessageRequest{}, err
	}
	return models.SendMessageRequest{
		ID:        f.str("id"),
		Recipient: f.str("recipient"),
		Message:   f.str("message"),
		Group:     f.flag("group"),
	}, nil
}

func decodeFields(r *http.Request) (fields, error) {
	out := fields{}
	if r.Body == nil || r.Body == http.NoBody {
		return out, nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	if mediaType == "multipart/form-data" {
		r.Body = body
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, errors.InvalidInput("malformed form body").WithDetail("error", err.Error())
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				out[key] = values[0]
			}
		}
		return out, nil
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.InvalidInput("unreadable request body").WithDetail("error", err.Error())
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return out, nil
	}

	// ParseForm ignores bodies on GET, so urlencoded input is parsed by hand.
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, errors.InvalidInput("malformed form body").WithDetail("error", err.Error())
		}
		for key, v := range values {
			if len(v) > 0 {
				out[key] = v[0]
			}
		}
		return out, nil
	}

	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.InvalidInput("malformed JSON body").WithDetail("error", err.Error())
	}
	return out, nil
}

// statusFor maps error codes onto HTTP statuses.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeSessionNotFound, errors.ErrCodeRecipientNotRegistered, errors.ErrCodeInvalidInput:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeShuttingDown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeStatus(w, statusFor(err), false, errors.Message(err))
}

func writeStatus(w http.ResponseWriter, status int, ok bool, message string) {
	writeJSON(w, status, models.StatusResponse{Status: ok, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
