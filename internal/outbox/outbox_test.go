package outbox

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/heat-engine/internal/paper"
)

func newTestOutbox(t *testing.T, window int) (*Outbox, *time.Time) {
	t.Helper()
	ob, err := New(filepath.Join(t.TempDir(), "data", "outbox.jsonl"), window)
	require.NoError(t, err)
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	ob.now = func() time.Time { return now }
	return ob, &now
}

func TestOutbox_RecordAndReadEvents(t *testing.T) {
	ob, _ := newTestOutbox(t, 0)

	opened := paper.Event{Type: paper.EventOpened, Position: paper.Position{ID: "p1", Ticker: "NVDA", Status: paper.StatusOpen}}
	closed := paper.Event{Type: paper.EventClosed, Position: paper.Position{ID: "p1", Ticker: "NVDA", Status: paper.StatusClosed, ExitReason: paper.ExitTargetHit, PnLDollars: 144}}
	ob.Record(opened)
	ob.Record(closed)
	_, err := ob.Write(TypeSummary, "", "", map[string]int{"trades": 1})
	require.NoError(t, err)

	events, err := ReadEvents(ob.Path())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, paper.EventOpened, events[0].Type)
	assert.Equal(t, paper.EventClosed, events[1].Type)
	assert.Equal(t, paper.ExitTargetHit, events[1].Position.ExitReason)
	assert.Equal(t, 144.0, events[1].Position.PnLDollars)

	entries, err := ReadEntries(ob.Path())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, TypeSummary, entries[2].Type)
	assert.Equal(t, "position_closed", entries[1].Kind)
}

func TestOutbox_Dedupe(t *testing.T) {
	ob, now := newTestOutbox(t, 60)

	key := GenerateIdempotencyKey("p1", "near_stop", *now, time.Minute)
	ok, err := ob.Write(TypeAlert, "near_stop", key, map[string]string{"id": "p1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ob.Write(TypeAlert, "near_stop", key, map[string]string{"id": "p1"})
	require.NoError(t, err)
	assert.False(t, ok, "same key inside window is dropped")

	*now = now.Add(2 * time.Minute)
	seen, err := ob.HasRecent(key)
	require.NoError(t, err)
	assert.False(t, seen)

	ok, err = ob.Write(TypeAlert, "near_stop", key, map[string]string{"id": "p1"})
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := ReadEntries(ob.Path())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReadEntries_MissingAndCorrupt(t *testing.T) {
	entries, err := ReadEntries(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	content := "{broken\n\n" + `{"type":"alert","data":{},"event":"2026-03-02T15:00:00Z"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	entries, err = ReadEntries(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, TypeAlert, entries[0].Type)
}

func TestGenerateIdempotencyKey(t *testing.T) {
	at := time.Date(2026, 3, 2, 15, 0, 10, 0, time.UTC)
	a := GenerateIdempotencyKey("p1", "near_target", at, time.Minute)
	b := GenerateIdempotencyKey("p1", "near_target", at.Add(30*time.Second), time.Minute)
	c := GenerateIdempotencyKey("p1", "near_target", at.Add(time.Minute), time.Minute)
	d := GenerateIdempotencyKey("p1", "near_stop", at, time.Minute)

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestNew_EmptyPath(t *testing.T) {
	_, err := New("", 0)
	assert.Error(t, err)
}
