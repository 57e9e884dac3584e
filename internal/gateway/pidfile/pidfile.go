// Package pidfile records the running gateway: its PID, the address it
// serves on and the session store it owns. One live gateway holds the file
// at a time, which keeps two processes from sharing a store.
package pidfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/wagate/pkg/process"
)

// Record is the content of the pidfile.
type Record struct {
	PID     int       `json:"pid"`
	Listen  string    `json:"listen,omitempty"`
	Store   string    `json:"store,omitempty"`
	Started time.Time `json:"started"`
}

// Lock is a pidfile held by this process.
type Lock struct {
	path string
	rec  Record
}

// Acquire claims path for this process with rec. It fails while the recorded
// holder is alive; a file left behind by a dead gateway is replaced.
func Acquire(path string, rec Record) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create pid directory: %w", err)
	}

	if held, err := Read(path); err == nil && process.IsProcessAlive(held.PID) {
		return nil, fmt.Errorf("wagate already running with PID %d (store %s, listen %s)",
			held.PID, orUnknown(held.Store), orUnknown(held.Listen))
	}

	rec.PID = os.Getpid()
	if rec.Started.IsZero() {
		rec.Started = time.Now().UTC()
	}
	l := &Lock{path: path, rec: rec}
	if err := l.write(); err != nil {
		return nil, err
	}
	return l, nil
}

// Record returns what the lock currently advertises.
func (l *Lock) Record() Record {
	return l.rec
}

// SetListen records the bound listen address, e.g. once ":0" is resolved.
func (l *Lock) SetListen(addr string) error {
	l.rec.Listen = addr
	return l.write()
}

// Release removes the pidfile unless another process has taken it over.
func (l *Lock) Release() error {
	held, err := Read(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err == nil && held.PID != l.rec.PID {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *Lock) write() error {
	data, err := json.MarshalIndent(l.rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// Read returns the record in path. A file holding only a PID is accepted.
func Read(path string) (Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(content, &rec); err == nil {
		return rec, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return Record{}, fmt.Errorf("invalid pid file %s: %w", path, err)
	}
	return Record{PID: pid}, nil
}

// Running returns the recorded gateway and whether it is alive. A missing
// file is not an error.
func Running(path string) (Record, bool, error) {
	rec, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return rec, process.IsProcessAlive(rec.PID), nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
