package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/heat-engine/internal/config"
	"github.com/Rajchodisetti/heat-engine/internal/lifecycle"
	"github.com/Rajchodisetti/heat-engine/internal/outbox"
	"github.com/Rajchodisetti/heat-engine/internal/paper"
)

func testConfig(t *testing.T) config.Root {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Outbox.Path = filepath.Join(t.TempDir(), "outbox.jsonl")
	cfg.Paper.Timezone = "UTC"
	return cfg
}

func TestRunSession(t *testing.T) {
	cfg := testConfig(t)
	sess, err := readSession("testdata/session.json")
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.close()

	var buf bytes.Buffer
	require.NoError(t, runSession(context.Background(), a, sess, &buf))

	var lines []output
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var o output
		require.NoError(t, json.Unmarshal(sc.Bytes(), &o))
		lines = append(lines, o)
	}
	// the quiet 100.2 tick prints nothing
	require.Len(t, lines, 5)

	sig := lines[0]
	require.NotNil(t, sig.Outcome)
	assert.Equal(t, 50, sig.Outcome.Score.HeatScore)
	assert.NotEmpty(t, sig.Outcome.PositionID)

	partial := lines[1]
	require.NotNil(t, partial.Tick)
	require.Len(t, partial.Tick.ProximityAlerts, 1)
	assert.Equal(t, paper.AlertPartialTarget, partial.Tick.ProximityAlerts[0].Kind)

	hit := lines[2]
	require.NotNil(t, hit.Tick)
	require.Len(t, hit.Tick.Closed, 1)
	assert.Equal(t, paper.ExitTargetHit, hit.Tick.Closed[0].ExitReason)
	assert.Equal(t, 144.0, hit.Tick.Closed[0].PnLDollars)

	assert.Contains(t, lines[3].Error, "invalid")

	sum := lines[4]
	require.NotNil(t, sum.Summary)
	assert.Equal(t, 1, sum.Summary.Totals.Trades)
	assert.Equal(t, 100.0, sum.Summary.Totals.WinRate)
	assert.Equal(t, 144.0, sum.Summary.Totals.PnL)

	events, err := outbox.ReadEvents(cfg.Outbox.Path)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestRunSession_Errors(t *testing.T) {
	cfg := testConfig(t)
	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.close()

	tests := []struct {
		name string
		sess sessionFile
	}{
		{"tick before open", sessionFile{TradeDate: "2026-03-02", Steps: []step{{Op: opTick}}}},
		{"unknown op", sessionFile{TradeDate: "2026-03-02", Steps: []step{{Op: "rewind"}}}},
		{"signal without payload", sessionFile{TradeDate: "2026-03-02", Steps: []step{{Op: opOpen}, {Op: opSignal}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Error(t, runSession(context.Background(), a, tt.sess, &buf))
		})
	}
}

func TestReadSession_MissingFile(t *testing.T) {
	_, err := readSession(filepath.Join("testdata", "missing.json"))
	assert.Error(t, err)
}

func TestMetricsServer(t *testing.T) {
	srv := metricsServer()
	for _, path := range []string{"/healthz", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestVerify(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paper.RiskLogDir = t.TempDir()
	sess, err := readSession("testdata/session.json")
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.close()
	require.NoError(t, runSession(context.Background(), a, sess, io.Discard))

	riskLog := lifecycle.RiskLogPath(cfg.Paper.RiskLogDir, sess.TradeDate)
	rep, err := verify(riskLog, cfg.Outbox.Path)
	require.NoError(t, err)
	assert.Positive(t, rep.RiskEvents)
	assert.Empty(t, rep.BreakerTrips)
	assert.Equal(t, 1, rep.PositionEvents[paper.EventOpened])
	assert.Equal(t, 1, rep.PositionEvents[paper.EventClosed])
	assert.Empty(t, rep.Unclosed)

	t.Run("risk log only", func(t *testing.T) {
		rep, err := verify(riskLog, "")
		require.NoError(t, err)
		assert.Nil(t, rep.PositionEvents)
	})

	t.Run("out of order log", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "risk.jsonl")
		require.NoError(t, os.WriteFile(bad, []byte(
			`{"id":"risk_1","type":"reset","timestamp":"2026-03-02T15:00:00Z"}`+"\n"+
				`{"id":"risk_2","type":"close_recorded","timestamp":"2026-03-02T14:00:00Z"}`+"\n"), 0644))
		_, err := verify(bad, "")
		assert.ErrorContains(t, err, "before previous")
	})

	t.Run("missing log", func(t *testing.T) {
		_, err := verify(filepath.Join(t.TempDir(), "nope.jsonl"), "")
		assert.Error(t, err)
	})
}
