// Package lifecycle turns client signals into session state changes, store
// updates and observer notifications.
package lifecycle

import (
	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/pkg/client"
	"github.com/grovetools/wagate/pkg/models"
)

// transitions is the complete table; any pair not listed is illegal.
var transitions = map[models.Status]map[client.SignalKind]models.Status{
	models.StatusPending: {
		client.SignalQR:            models.StatusAwaitingScan,
		client.SignalAuthenticated: models.StatusAuthenticated,
		client.SignalAuthFailure:   models.StatusPending,
		client.SignalDisconnected:  models.StatusDisconnected,
	},
	models.StatusAwaitingScan: {
		client.SignalQR:            models.StatusAwaitingScan,
		client.SignalAuthenticated: models.StatusAuthenticated,
		client.SignalAuthFailure:   models.StatusPending,
		client.SignalDisconnected:  models.StatusDisconnected,
	},
	models.StatusAuthenticated: {
		client.SignalReady:        models.StatusReady,
		client.SignalAuthFailure:  models.StatusPending,
		client.SignalDisconnected: models.StatusDisconnected,
	},
	models.StatusReady: {
		client.SignalDisconnected: models.StatusDisconnected,
	},
}

// Machine validates transitions for one session.
type Machine struct{}

// Next returns the state reached from current on kind, or ILLEGAL_TRANSITION.
func (Machine) Next(id string, current models.Status, kind client.SignalKind) (models.Status, error) {
	if next, ok := transitions[current][kind]; ok {
		return next, nil
	}
	return current, errors.IllegalTransition(id, string(current), string(kind))
}
