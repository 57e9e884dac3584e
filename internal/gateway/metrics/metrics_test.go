package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := &dto.Metric{}
	require.NoError(t, (<-ch).Write(m))
	if m.GetGauge() != nil {
		return m.GetGauge().GetValue()
	}
	return m.GetCounter().GetValue()
}

func TestRecording(t *testing.T) {
	m := New()

	m.SignalReceived("qr")
	m.SignalReceived("qr")
	m.IllegalTransition()
	m.StoreWriteFailed()
	m.SetLiveSessions(3)
	m.ObserverConnected()
	m.ObserverConnected()
	m.ObserverDisconnected()

	assert.Equal(t, 2.0, counterValue(t, m.signals.WithLabelValues("qr")))
	assert.Equal(t, 1.0, counterValue(t, m.illegalTransitions))
	assert.Equal(t, 1.0, counterValue(t, m.storeWriteFailures))
	assert.Equal(t, 3.0, counterValue(t, m.liveSessions))
	assert.Equal(t, 1.0, counterValue(t, m.observers))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SignalReceived("ready")
		m.MessageResult("direct", "sent")
		m.GroupScan("ok")
		m.SetLiveSessions(1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.MessageResult("group", "sent")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `wagate_messages_total{result="sent",target="group"} 1`)
}
