package options

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormCDF(t *testing.T) {
	cases := []struct {
		x    float64
		want float64
	}{
		{0, 0.5},
		{1, 0.8413447},
		{-1, 0.1586553},
		{1.96, 0.9750021},
		{-3, 0.0013499},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, NormCDF(tc.x), 2e-7, "x=%v", tc.x)
	}
}

func TestPrice_KnownValues(t *testing.T) {
	// Hull's textbook example: S=42, K=40, r=10%, sigma=20%, T=0.5.
	call := Price(42, 40, 0.5, 0.10, 0.20, true)
	put := Price(42, 40, 0.5, 0.10, 0.20, false)
	assert.InDelta(t, 4.76, call, 0.01)
	assert.InDelta(t, 0.81, put, 0.01)

	// Put-call parity.
	parity := call - put - (42 - 40*math.Exp(-0.10*0.5))
	assert.InDelta(t, 0, parity, 1e-6)
}

func TestPrice_IntrinsicAtExpiry(t *testing.T) {
	for _, vol := range []float64{0.01, 0.3, 2.5} {
		assert.Equal(t, 5.0, Price(105, 100, 0, 0.05, vol, true))
		assert.Equal(t, 0.0, Price(105, 100, 0, 0.05, vol, false))
		assert.Equal(t, 0.0, Price(95, 100, 0, 0.05, vol, true))
		assert.Equal(t, 5.0, Price(95, 100, 0, 0.05, vol, false))
		assert.Equal(t, 5.0, Price(95, 100, -0.1, 0.05, vol, false))
	}
}

func TestImpliedVolatility_RoundTrip(t *testing.T) {
	type point struct {
		strike float64
		years  float64
		vol    float64
		call   bool
	}
	var grid []point
	for _, vol := range []float64{0.05, 0.2, 0.5, 1.0, 2.0} {
		for _, years := range []float64{0.01, 0.25, 1.0, 2.0} {
			grid = append(grid, point{100, years, vol, true}, point{100, years, vol, false})
		}
	}
	for _, vol := range []float64{0.3, 0.6} {
		for _, years := range []float64{0.5, 1.0} {
			grid = append(grid, point{110, years, vol, true}, point{90, years, vol, false})
		}
	}

	for _, p := range grid {
		name := fmt.Sprintf("K%.0f_T%.2f_v%.2f_call%v", p.strike, p.years, p.vol, p.call)
		t.Run(name, func(t *testing.T) {
			price := Price(100, p.strike, p.years, DefaultRiskFreeRate, p.vol, p.call)
			iv, ok := ImpliedVolatility(price, 100, p.strike, p.years, DefaultRiskFreeRate, p.call)
			require.True(t, ok)
			assert.InDelta(t, p.vol, iv, 1e-3)
		})
	}
}

func TestImpliedVolatility_InvalidInputs(t *testing.T) {
	_, ok := ImpliedVolatility(2.0, 100, 100, 0, 0.05, true)
	assert.False(t, ok, "no time left")

	_, ok = ImpliedVolatility(0, 100, 100, 0.5, 0.05, true)
	assert.False(t, ok, "zero price")

	_, ok = ImpliedVolatility(150, 100, 100, 0.5, 0.05, true)
	assert.False(t, ok, "call above spot")

	_, ok = ImpliedVolatility(0.5, 120, 100, 0.5, 0.05, true)
	assert.False(t, ok, "below intrinsic")
}

func TestComputeGreeks(t *testing.T) {
	call, ok := ComputeGreeks(100, 100, 0.5, 0.05, 0.25, true)
	require.True(t, ok)
	put, ok := ComputeGreeks(100, 100, 0.5, 0.05, 0.25, false)
	require.True(t, ok)

	assert.InDelta(t, 1.0, call.Delta-put.Delta, 1e-9)
	assert.Greater(t, call.Delta, 0.5)
	assert.Less(t, put.Delta, 0.0)
	assert.InDelta(t, call.Gamma, put.Gamma, 1e-12)
	assert.InDelta(t, call.Vega, put.Vega, 1e-12)
	assert.Less(t, call.Theta, 0.0)
	assert.Greater(t, call.Rho, 0.0)
	assert.Less(t, put.Rho, 0.0)

	// Vega per point should match a finite difference of one vol point.
	bump := Price(100, 100, 0.5, 0.05, 0.26, true) - Price(100, 100, 0.5, 0.05, 0.25, true)
	assert.InDelta(t, bump, call.Vega, 0.01)

	_, ok = ComputeGreeks(100, 100, 0, 0.05, 0.25, true)
	assert.False(t, ok)
}

func TestEstimateOptionPriceMove(t *testing.T) {
	g, ok := ComputeGreeks(100, 101, 7.0/365, 0.05, 0.35, true)
	require.True(t, ok)

	est := EstimateOptionPriceMove(g, 100, 1.5)
	actual := Price(101.5, 101, 7.0/365, 0.05, 0.35, true) - Price(100, 101, 7.0/365, 0.05, 0.35, true)
	assert.InDelta(t, actual, est, 0.05)
	assert.Greater(t, est, g.Delta*1.5, "gamma term adds convexity")
}
