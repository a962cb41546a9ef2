package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/heat-engine/internal/decision"
	"github.com/Rajchodisetti/heat-engine/internal/heat"
	"github.com/Rajchodisetti/heat-engine/internal/signals"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 70, c.Heat.Thresholds.HighConviction)
	assert.Equal(t, 50, c.Heat.Thresholds.Alert)
	assert.Equal(t, 35, c.Heat.Thresholds.Watchlist)
	assert.Equal(t, 2000.0, c.Paper.PositionNotional)
	assert.Equal(t, 3, c.Paper.MaxConsecutiveLosses)
	assert.Equal(t, "memory", c.Store.Backend)
	assert.True(t, c.Outbox.Enabled)
	assert.Equal(t, 0.05, c.Options.RiskFreeRate)
	assert.Equal(t, time.Hour, c.RepeatWindow())
}

func TestLoad_DefaultsMatchPackageDefaults(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, heatDefaults(), c.HeatConfig())
	assert.Equal(t, decision.DefaultConfig(), c.DecisionConfig())

	p := c.PaperConfig()
	assert.Equal(t, 1.5, p.TrailActivationPct)
	assert.Equal(t, 0.3, p.StopProximity)
	assert.Equal(t, "America/New_York", p.Location.String())
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := writeFile(t, "heat.yaml", `
log:
  level: debug
heat:
  thresholds:
    high_conviction: 80
    alert: 60
  points:
    breakout: 25
recommend:
  phase_points:
    midday: -20
  tiers:
    strong:
      target_pct: 0.02
      leverage: 5
paper:
  max_daily_loss: 300
  max_consecutive_losses: 2
store:
  backend: file
  path: /tmp/heat/positions.json
outbox:
  enabled: false
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format, "unset fields keep defaults")

	h := c.HeatConfig()
	assert.Equal(t, 80, h.Thresholds.HighConviction)
	assert.Equal(t, 60, h.Thresholds.Alert)
	assert.Equal(t, 35, h.Thresholds.Watchlist)
	assert.Equal(t, 25, h.Points.Breakout)
	assert.Equal(t, 30, h.Points.VolumeExtremePoints)

	d := c.DecisionConfig()
	assert.Equal(t, -20, d.PhasePoints[decision.PhaseMidday])
	assert.Equal(t, 15, d.PhasePoints[decision.PhaseOpening])
	strong := d.Profiles[decision.TierStrong]
	assert.Equal(t, 0.02, strong.TargetPct)
	assert.Equal(t, 5.0, strong.Leverage)
	assert.Equal(t, 0.012, strong.StopPct)
	assert.Equal(t, 65, strong.MinScore)

	assert.Equal(t, 300.0, c.RiskLimits().MaxDailyLoss)
	assert.Equal(t, 2, c.RiskLimits().MaxConsecutiveLosses)
	assert.Equal(t, "file", c.StoreConfig().Backend)
	assert.Equal(t, "/tmp/heat/positions.json", c.StoreConfig().Path)
	assert.False(t, c.Outbox.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HEAT_MAX_DAILY_LOSS", "750")
	t.Setenv("HEAT_STORE_BACKEND", "redis")
	t.Setenv("HEAT_REDIS_ADDR", "redis:6380")
	t.Setenv("HEAT_NOTIFY_ENABLED", "false")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 750.0, c.Paper.MaxDailyLoss)
	assert.Equal(t, "redis", c.Store.Backend)
	assert.Equal(t, "redis:6380", c.StoreConfig().Redis.Addr)
	assert.Equal(t, "heat", c.StoreConfig().Redis.Prefix)
	assert.False(t, c.NotifyConfig().Enabled)
}

func TestLoad_EnvFile(t *testing.T) {
	env := writeFile(t, "test.env", "HEAT_POSITION_NOTIONAL=5000\nHEAT_ALERT_THRESHOLD=40\n")
	t.Cleanup(func() {
		os.Unsetenv("HEAT_POSITION_NOTIONAL")
		os.Unsetenv("HEAT_ALERT_THRESHOLD")
	})

	c, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, c.Paper.PositionNotional)
	assert.Equal(t, 5000.0, c.DecisionConfig().PositionNotional)
	assert.Equal(t, 40, c.Heat.Thresholds.Alert)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{"alert above high conviction", "heat:\n  thresholds:\n    high_conviction: 50\n    alert: 60\n", nil},
		{"watchlist above alert", "heat:\n  thresholds:\n    watchlist: 55\n", nil},
		{"threshold over 100", "heat:\n  thresholds:\n    high_conviction: 120\n", nil},
		{"zero consecutive losses", "paper:\n  max_consecutive_losses: -1\n", nil},
		{"negative daily loss", "paper:\n  max_daily_loss: -5\n", nil},
		{"unknown backend", "store:\n  backend: dynamo\n", nil},
		{"unknown phase", "recommend:\n  phase_points:\n    lunch: 5\n", nil},
		{"unknown tier", "recommend:\n  tiers:\n    yolo:\n      dte: 1\n", nil},
		{"bad timezone", "paper:\n  timezone: Mars/Olympus\n", nil},
		{"bad log level", "log:\n  level: loud\n", nil},
		{"bad env number", "", map[string]string{"HEAT_MAX_DAILY_LOSS": "lots"}},
		{"malformed yaml", "heat: [\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = writeFile(t, "bad.yaml", tt.yaml)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_ExampleFile(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "heat.example.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "file", c.Store.Backend)
	assert.Equal(t, ":9102", c.Metrics.Addr)
	assert.Equal(t, 4.0, c.DecisionConfig().Profiles[decision.TierFire].Leverage)
	assert.Equal(t, -5, c.Recommend.PhasePoints["midday"])
	assert.Equal(t, "data/risk", c.Paper.RiskLogDir)
}

func TestLoad_ExplicitZerosAreApplied(t *testing.T) {
	path := writeFile(t, "zeros.yaml", `
heat:
  points:
    breakout: 0
    confirm_high_points: 0
    repeat_low_count: 1
  adjustments:
    sector_cap: 0
    earnings_imminent_penalty: 0
recommend:
  market_align_points: 0
  market_align_min_pct: 0
  earnings_same_day_penalty: 0
  midday_warning: false
  signal_bonuses:
    breakout: 0
    gap: 4
  volume_tiers:
    - min_multiplier: 2
      points: 5
    - min_multiplier: 4
      points: 0
  tiers:
    strong:
      min_score: 0
      leverage: 0
`)
	c, err := Load(path)
	require.NoError(t, err)

	h := c.HeatConfig()
	assert.Equal(t, 0, h.Points.Breakout)
	assert.Equal(t, 0, h.Points.ConfirmHighPoints)
	assert.Equal(t, 1, h.Points.RepeatLowCount)
	assert.Equal(t, 0, h.Adjustments.SectorCap)
	assert.Equal(t, 0, h.Adjustments.EarningsImminentPenalty)
	assert.Equal(t, 15, h.Points.Gap, "unset keys keep defaults")

	d := c.DecisionConfig()
	assert.Equal(t, 0, d.MarketAlignPoints)
	assert.Equal(t, 0.0, d.MarketAlignMinPct)
	assert.Equal(t, 0, d.EarningsSameDayPenalty)
	assert.False(t, d.MiddayWarning)
	assert.Equal(t, 0, d.SignalBonuses[signals.KindBreakout])
	assert.Equal(t, 4, d.SignalBonuses[signals.KindGap])
	assert.Equal(t, 5, d.SignalBonuses[signals.KindMomentumSurge])
	assert.Equal(t, []decision.VolumeTier{{MinMultiplier: 4, Points: 0}, {MinMultiplier: 2, Points: 5}}, d.VolumeTiers)

	strong := d.Profiles[decision.TierStrong]
	assert.Equal(t, 0, strong.MinScore)
	assert.Equal(t, 0.0, strong.Leverage)
	assert.Equal(t, 0.018, strong.TargetPct)
}

func TestLoad_InvalidTables(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown signal bonus", "recommend:\n  signal_bonuses:\n    sweep: 5\n"},
		{"negative volume multiple", "recommend:\n  volume_tiers:\n    - min_multiplier: -1\n      points: 5\n"},
		{"repeat low above high", "heat:\n  points:\n    repeat_low_count: 4\n"},
		{"negative tier dte", "recommend:\n  tiers:\n    good:\n      dte: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", tt.yaml))
			assert.Error(t, err)
		})
	}
}

func heatDefaults() heat.Config {
	return heat.DefaultConfig()
}
