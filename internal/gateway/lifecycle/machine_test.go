package lifecycle

import (
	"testing"

	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/pkg/client"
	"github.com/grovetools/wagate/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestMachineTransitions(t *testing.T) {
	tests := []struct {
		from models.Status
		sig  client.SignalKind
		want models.Status
	}{
		{models.StatusPending, client.SignalQR, models.StatusAwaitingScan},
		{models.StatusAwaitingScan, client.SignalQR, models.StatusAwaitingScan},
		{models.StatusPending, client.SignalAuthenticated, models.StatusAuthenticated},
		{models.StatusAwaitingScan, client.SignalAuthenticated, models.StatusAuthenticated},
		{models.StatusAuthenticated, client.SignalReady, models.StatusReady},
		{models.StatusPending, client.SignalAuthFailure, models.StatusPending},
		{models.StatusAwaitingScan, client.SignalAuthFailure, models.StatusPending},
		{models.StatusAuthenticated, client.SignalAuthFailure, models.StatusPending},
		{models.StatusReady, client.SignalDisconnected, models.StatusDisconnected},
		{models.StatusPending, client.SignalDisconnected, models.StatusDisconnected},
		{models.StatusAwaitingScan, client.SignalDisconnected, models.StatusDisconnected},
		{models.StatusAuthenticated, client.SignalDisconnected, models.StatusDisconnected},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.sig), func(t *testing.T) {
			got, err := Machine{}.Next("a", tt.from, tt.sig)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMachineRejectsIllegalTransitions(t *testing.T) {
	illegal := []struct {
		from models.Status
		sig  client.SignalKind
	}{
		{models.StatusPending, client.SignalReady},
		{models.StatusAwaitingScan, client.SignalReady},
		{models.StatusReady, client.SignalQR},
		{models.StatusReady, client.SignalAuthenticated},
		{models.StatusAuthenticated, client.SignalQR},
		{models.StatusAuthFailed, client.SignalQR},
		{models.StatusDisconnected, client.SignalReady},
	}
	for _, tt := range illegal {
		got, err := Machine{}.Next("a", tt.from, tt.sig)
		assert.True(t, errors.Is(err, errors.ErrCodeIllegalTransition), "%s/%s", tt.from, tt.sig)
		assert.Equal(t, tt.from, got)
	}
}
