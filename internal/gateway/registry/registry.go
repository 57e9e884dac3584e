// Package registry holds the live session objects of this process. It is not
// safe for concurrent use; the session manager owns it and touches it only
// from its event loop.
package registry

import (
	"sort"

	"github.com/grovetools/wagate/errors"
	"github.com/grovetools/wagate/pkg/client"
	"github.com/grovetools/wagate/pkg/models"
)

// LiveSession is the in-memory state of one session.
type LiveSession struct {
	ID          string
	Description string
	Client      client.Client
	Status      models.Status
}

// Registry maps session ids to live sessions. At most one entry exists per id.
type Registry struct {
	sessions map[string]*LiveSession
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]*LiveSession)}
}

func (r *Registry) Get(id string) (*LiveSession, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Put registers s under id. It fails with ALREADY_REGISTERED if id is taken.
func (r *Registry) Put(id string, s *LiveSession) error {
	if _, exists := r.sessions[id]; exists {
		return errors.AlreadyRegistered(id)
	}
	r.sessions[id] = s
	return nil
}

// Remove drops id. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	delete(r.sessions, id)
}

// List returns every live session ordered by id.
func (r *Registry) List() []*LiveSession {
	out := make([]*LiveSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetStatus updates the status of id and reports whether it was registered.
func (r *Registry) SetStatus(id string, status models.Status) bool {
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.Status = status
	return true
}

func (r *Registry) Len() int {
	return len(r.sessions)
}
