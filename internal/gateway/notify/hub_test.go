package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/internal/gateway/metrics"
	"github.com/grovetools/wagate/logging"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	mu       sync.Mutex
	records  []models.SessionRecord
	created  []models.CreateSessionPayload
	createFn func(id string) error
	// onSnapshot runs after the records are copied, like a publish that
	// lands while the snapshot is on its way back.
	onSnapshot func()
}

func (f *fakeSessions) Snapshot(ctx context.Context) ([]models.SessionRecord, error) {
	f.mu.Lock()
	out := models.CloneRecords(f.records)
	fn := f.onSnapshot
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
	return out, nil
}

func (f *fakeSessions) CreateSession(ctx context.Context, id, description string) error {
	f.mu.Lock()
	f.created = append(f.created, models.CreateSessionPayload{ID: id, Description: description})
	fn := f.createFn
	f.mu.Unlock()
	if fn != nil {
		return fn(id)
	}
	return nil
}

func (f *fakeSessions) createdIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, c := range f.created {
		ids = append(ids, c.ID)
	}
	return ids
}

type frame struct {
	Event models.EventKind `json:"event"`
	Data  json.RawMessage  `json:"data"`
}

func startHub(t *testing.T, sessions Sessions, origins ...string) (*Hub, string) {
	t.Helper()
	hub := NewHub(Options{
		AllowedOrigins: origins,
		Metrics:        metrics.New(),
		Logger:         logging.NewLogger("notify-test"),
	})
	srv := httptest.NewServer(hub.Handler(sessions))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestInitSnapshotOnConnect(t *testing.T) {
	sessions := &fakeSessions{records: []models.SessionRecord{
		{ID: "a", Description: "first", Ready: true},
		{ID: "b", Description: "second"},
	}}
	_, url := startHub(t, sessions)
	conn := dial(t, url)

	f := readFrame(t, conn)
	assert.Equal(t, models.EventInit, f.Event)
	var records []models.SessionRecord
	require.NoError(t, json.Unmarshal(f.Data, &records))
	assert.Equal(t, sessions.records, records)
}

func TestPublishDuringSnapshotFollowsInit(t *testing.T) {
	var hub atomic.Pointer[Hub]
	sessions := &fakeSessions{
		records: []models.SessionRecord{{ID: "alice"}},
		onSnapshot: func() {
			hub.Load().Publish(models.Notification{SessionID: "alice", Kind: models.EventReady, Payload: models.IDPayload{ID: "alice"}})
		},
	}
	h, url := startHub(t, sessions)
	hub.Store(h)
	conn := dial(t, url)

	first := readFrame(t, conn)
	require.Equal(t, models.EventInit, first.Event)
	assert.JSONEq(t, `[{"id":"alice","description":"","ready":false}]`, string(first.Data))

	ready := readFrame(t, conn)
	assert.Equal(t, models.EventReady, ready.Event)
	assert.JSONEq(t, `{"id":"alice"}`, string(ready.Data))
}

func TestPublishReachesEveryObserver(t *testing.T) {
	hub, url := startHub(t, &fakeSessions{})
	first := dial(t, url)
	second := dial(t, url)
	readFrame(t, first)
	readFrame(t, second)
	require.Equal(t, 2, hub.Len())

	hub.Publish(models.Notification{SessionID: "a", Kind: models.EventQR, Payload: models.QRPayload{ID: "a", Src: "data:image/png;base64,xx"}})
	hub.Publish(models.Notification{SessionID: "a", Kind: models.EventRemoveSession, Payload: "a"})

	for _, conn := range []*websocket.Conn{first, second} {
		qr := readFrame(t, conn)
		assert.Equal(t, models.EventQR, qr.Event)
		assert.JSONEq(t, `{"id":"a","src":"data:image/png;base64,xx"}`, string(qr.Data))

		removed := readFrame(t, conn)
		assert.Equal(t, models.EventRemoveSession, removed.Event)
		assert.JSONEq(t, `"a"`, string(removed.Data))
	}
}

func TestCreateSessionCommand(t *testing.T) {
	sessions := &fakeSessions{}
	_, url := startHub(t, sessions)
	conn := dial(t, url)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": "create-session",
		"data":  map[string]string{"id": "s1", "description": "support line"},
	}))

	assert.Eventually(t, func() bool {
		return len(sessions.createdIDs()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	assert.Equal(t, "support line", sessions.created[0].Description)
}

func TestCreateSessionFailureIsReported(t *testing.T) {
	sessions := &fakeSessions{createFn: func(id string) error {
		return errors.InvalidInput("invalid session id")
	}}
	_, url := startHub(t, sessions)
	conn := dial(t, url)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": "create-session",
		"data":  map[string]string{"id": "bad id"},
	}))

	f := readFrame(t, conn)
	assert.Equal(t, models.EventMessage, f.Event)
	var payload models.MessagePayload
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Equal(t, "bad id", payload.ID)
	assert.Contains(t, payload.Text, "invalid session id")
}

func TestUnregisterOnDisconnect(t *testing.T) {
	hub, url := startHub(t, &fakeSessions{})
	conn := dial(t, url)
	readFrame(t, conn)
	require.Equal(t, 1, hub.Len())

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Publishing with no observers is a no-op.
	hub.Publish(models.Notification{SessionID: "a", Kind: models.EventReady, Payload: models.IDPayload{ID: "a"}})
}

func TestCloseRejectsNewObservers(t *testing.T) {
	hub, url := startHub(t, &fakeSessions{})
	conn := dial(t, url)
	readFrame(t, conn)

	hub.Close()
	assert.Equal(t, 0, hub.Len())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

func TestOriginCheck(t *testing.T) {
	_, url := startHub(t, &fakeSessions{}, "https://allowed.example")

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://allowed.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}
