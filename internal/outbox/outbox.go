// Package outbox appends position lifecycle events and alerts to a JSONL
// file that can be audited or replayed later.
package outbox

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/paper"
)

// Entry types written to the log.
const (
	TypePosition = "position"
	TypeAlert    = "alert"
	TypeSummary  = "summary"
)

// Entry is one line of the outbox.
type Entry struct {
	Type           string          `json:"type"`
	Kind           string          `json:"kind,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Data           json.RawMessage `json:"data"`
	Event          time.Time       `json:"event"`
}

type Outbox struct {
	mu           sync.Mutex
	path         string
	dedupeWindow time.Duration
	now          func() time.Time
}

func New(path string, dedupeWindowSecs int) (*Outbox, error) {
	if path == "" {
		return nil, errors.New("outbox: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	return &Outbox{
		path:         path,
		dedupeWindow: time.Duration(dedupeWindowSecs) * time.Second,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Path of the underlying file.
func (o *Outbox) Path() string { return o.path }

// Write appends one entry. A non-empty key already seen inside the dedupe
// window is dropped and reported as written=false.
func (o *Outbox) Write(typ, kind, key string, data any) (bool, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("outbox: marshal %s: %w", typ, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if key != "" && o.dedupeWindow > 0 {
		seen, err := o.hasRecentLocked(key)
		if err != nil {
			return false, err
		}
		if seen {
			return false, nil
		}
	}
	entry := Entry{Type: typ, Kind: kind, IdempotencyKey: key, Data: raw, Event: o.now()}
	return true, o.appendEntry(entry)
}

// WritePositionEvent logs a paper engine event.
func (o *Outbox) WritePositionEvent(ev paper.Event) error {
	_, err := o.Write(TypePosition, string(ev.Type), "", ev)
	return err
}

// Record lets the outbox sit directly behind the paper engine.
func (o *Outbox) Record(ev paper.Event) {
	if err := o.WritePositionEvent(ev); err != nil {
		logWriteError(ev, err)
	}
}

func (o *Outbox) appendEntry(entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(o.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

// HasRecent reports whether key was written inside the dedupe window.
func (o *Outbox) HasRecent(key string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hasRecentLocked(key)
}

func (o *Outbox) hasRecentLocked(key string) (bool, error) {
	cutoff := o.now().Add(-o.dedupeWindow)
	found := false
	err := scan(o.path, func(e Entry) bool {
		if e.IdempotencyKey == key && !e.Event.Before(cutoff) {
			found = true
			return false
		}
		return true
	})
	return found, err
}

// ReadEntries loads every well-formed line of the file at path. A missing
// file yields no entries.
func ReadEntries(path string) ([]Entry, error) {
	var out []Entry
	err := scan(path, func(e Entry) bool {
		out = append(out, e)
		return true
	})
	return out, err
}

// ReadEvents returns the position events in file order.
func ReadEvents(path string) ([]paper.Event, error) {
	entries, err := ReadEntries(path)
	if err != nil {
		return nil, err
	}
	var events []paper.Event
	for _, e := range entries {
		if e.Type != TypePosition {
			continue
		}
		var ev paper.Event
		if err := json.Unmarshal(e.Data, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func scan(path string, fn func(Entry) bool) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if !fn(e) {
			return nil
		}
	}
	return sc.Err()
}
