// Package models holds the wire and persistence types shared by the gateway,
// its HTTP surface and the CLI.
package models

// SessionRecord is the durable metadata for one session.
type SessionRecord struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Ready       bool   `json:"ready" yaml:"ready"`
}

// Status is the derived lifecycle state of a live session. Only the boolean
// projection (Status == StatusReady) is ever persisted.
type Status string

const (
	StatusPending       Status = "pending"
	StatusAwaitingScan  Status = "awaiting_scan"
	StatusAuthenticated Status = "authenticated"
	StatusReady         Status = "ready"
	StatusDisconnected  Status = "disconnected"
	StatusAuthFailed    Status = "auth_failed"
)

// Terminal reports whether the live instance can no longer make progress.
func (s Status) Terminal() bool {
	return s == StatusDisconnected || s == StatusAuthFailed
}

// FindRecord returns the index of the record with the given id, or -1.
func FindRecord(records []SessionRecord, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}

// CloneRecords returns a copy of records that callers may mutate freely.
func CloneRecords(records []SessionRecord) []SessionRecord {
	out := make([]SessionRecord, len(records))
	copy(out, records)
	return out
}

// Group is a group conversation reported by /list-group.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
