package signals

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Variants(t *testing.T) {
	cases := []struct {
		name      string
		event     Event
		kind      Kind
		direction Direction
	}{
		{"volume spike", Event{Ticker: "nvda", Type: "volume_spike", Price: 900, Attrs: map[string]float64{"rvol": 6}}, KindVolumeSpike, Bullish},
		{"block trade down", Event{Ticker: "AAPL", Type: "block_trade", Price: 200, Attrs: map[string]float64{"trade_value": 2e6, "price_change_percent": -0.4}}, KindBlockTrade, Bearish},
		{"momentum", Event{Ticker: "AMD", Type: "momentum_surge", Price: 150, Attrs: map[string]float64{"price_change_percent": 3.1}}, KindMomentumSurge, Bullish},
		{"breakdown", Event{Ticker: "TSLA", Type: "breakout", Price: 240, Attrs: map[string]float64{"level": 245, "breakdown": 1}}, KindBreakout, Bearish},
		{"gap down", Event{Ticker: "META", Type: "gap", Price: 480, Attrs: map[string]float64{"gap_percent": -2.5}}, KindGap, Bearish},
		{"vwap above", Event{Ticker: "MSFT", Type: "VWAP_CROSS", Price: 410, Attrs: map[string]float64{"vwap": 408}}, KindVWAPCross, Bullish},
		{"new high", Event{Ticker: "AVGO", Type: "new_high", Price: 170}, KindNewHigh, Bullish},
		{"new low", Event{Ticker: "INTC", Type: "new_low", Price: 20}, KindNewLow, Bearish},
		{"relative strength", Event{Ticker: "SMCI", Type: "relative_strength", Price: 40, Attrs: map[string]float64{"vs_index_percent": 1.2}}, KindRelativeStrength, Bullish},
		{"unknown", Event{Ticker: "QQQ", Type: "dark_pool_sweep", Price: 480}, KindUnknown, Bullish},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig, err := Classify(tc.event)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, sig.Kind())
			assert.Equal(t, tc.direction, sig.Direction())
			assert.NotEmpty(t, Describe(sig))
		})
	}
}

func TestClassify_TypedFields(t *testing.T) {
	sig, err := Classify(Event{Ticker: " nvda ", Type: "volume_spike", Price: 900, Attrs: map[string]float64{"rvol": 6}})
	require.NoError(t, err)

	spike, ok := sig.(VolumeSpike)
	require.True(t, ok)
	assert.Equal(t, "NVDA", spike.Ticker())
	assert.Equal(t, 6.0, spike.RVOL)
}

func TestClassify_Invalid(t *testing.T) {
	_, err := Classify(Event{Ticker: "AAPL", Type: "gap", Price: 0})
	assert.True(t, errors.Is(err, ErrInvalidEvent))

	_, err = Classify(Event{Ticker: "  ", Type: "gap", Price: 10})
	assert.True(t, errors.Is(err, ErrInvalidEvent))
}

func TestPriceChangePercent(t *testing.T) {
	sig, err := Classify(Event{Ticker: "AMD", Type: "momentum_surge", Price: 150, Attrs: map[string]float64{"price_change_percent": -2.2}})
	require.NoError(t, err)
	assert.Equal(t, -2.2, PriceChangePercent(sig))

	sig, err = Classify(Event{Ticker: "AVGO", Type: "new_high", Price: 170})
	require.NoError(t, err)
	assert.Equal(t, 0.0, PriceChangePercent(sig))
}
