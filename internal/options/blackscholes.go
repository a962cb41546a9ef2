// Package options prices European options with Black-Scholes, solves for
// implied volatility and computes the Greeks used for leverage estimates.
//
// Every function is pure. Inputs outside the model's domain produce an
// "unavailable" result (ok == false) instead of an error so callers can fall
// back to fixed multipliers.
package options

import "math"

// DefaultRiskFreeRate is the flat annual rate used when none is configured.
const DefaultRiskFreeRate = 0.05

const (
	ivMinVol      = 0.001
	ivMaxVol      = 10.0
	ivTolerance   = 1e-4
	ivMaxIter     = 100
	ivMinVega     = 1e-5
	daysPerYear   = 365.0
	erfP          = 0.3275911
	erfA1         = 0.254829592
	erfA2         = -0.284496736
	erfA3         = 1.421413741
	erfA4         = -1.453152027
	erfA5         = 1.061405429
	invSqrtTwoPi  = 0.3989422804014327
	sqrtTwoPiHalf = 2.5066282746310002 // sqrt(2*pi)
)

// erf is the Abramowitz-Stegun 7.1.26 approximation (|error| <= 1.5e-7).
func erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
		x = -x
	}
	t := 1.0 / (1.0 + erfP*x)
	y := 1.0 - (((((erfA5*t+erfA4)*t)+erfA3)*t+erfA2)*t+erfA1)*t*math.Exp(-x*x)
	return sign * y
}

// NormCDF is the standard normal cumulative distribution.
func NormCDF(x float64) float64 {
	return 0.5 * (1.0 + erf(x/math.Sqrt2))
}

// NormPDF is the standard normal density.
func NormPDF(x float64) float64 {
	return invSqrtTwoPi * math.Exp(-0.5*x*x)
}

func d1d2(spot, strike, t, r, vol float64) (float64, float64) {
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (r+0.5*vol*vol)*t) / (vol * sqrtT)
	return d1, d1 - vol*sqrtT
}

func intrinsic(spot, strike float64, isCall bool) float64 {
	if isCall {
		return math.Max(0, spot-strike)
	}
	return math.Max(0, strike-spot)
}

// Price returns the Black-Scholes value of a European option. At or past
// expiry, or with zero volatility, it returns intrinsic value.
func Price(spot, strike, yearsToExpiry, riskFreeRate, volatility float64, isCall bool) float64 {
	if spot <= 0 || strike <= 0 {
		return 0
	}
	if yearsToExpiry <= 0 || volatility <= 0 {
		return intrinsic(spot, strike, isCall)
	}
	d1, d2 := d1d2(spot, strike, yearsToExpiry, riskFreeRate, volatility)
	disc := strike * math.Exp(-riskFreeRate*yearsToExpiry)
	if isCall {
		return spot*NormCDF(d1) - disc*NormCDF(d2)
	}
	return disc*NormCDF(-d2) - spot*NormCDF(-d1)
}

// rawVega is dPrice/dVol for a full unit of volatility.
func rawVega(spot, strike, t, r, vol float64) float64 {
	d1, _ := d1d2(spot, strike, t, r, vol)
	return spot * NormPDF(d1) * math.Sqrt(t)
}

func clampVol(v float64) float64 {
	if v < ivMinVol {
		return ivMinVol
	}
	if v > ivMaxVol {
		return ivMaxVol
	}
	return v
}

// ImpliedVolatility solves Price(...) == observedPrice for volatility with
// Newton-Raphson, seeded from the Brenner-Subrahmanyam at-the-money
// approximation. ok is false for invalid inputs, when vega collapses below
// 1e-5, or when 100 iterations do not reach a price error under 1e-4.
func ImpliedVolatility(observedPrice, spot, strike, yearsToExpiry, riskFreeRate float64, isCall bool) (float64, bool) {
	if yearsToExpiry <= 0 || observedPrice <= 0 || spot <= 0 || strike <= 0 {
		return 0, false
	}
	// No volatility reproduces a price outside the no-arbitrage band.
	disc := strike * math.Exp(-riskFreeRate*yearsToExpiry)
	lower, upper := math.Max(0, spot-disc), spot
	if !isCall {
		lower, upper = math.Max(0, disc-spot), disc
	}
	if observedPrice <= lower || observedPrice >= upper {
		return 0, false
	}

	// Solve on the call side; put-call parity keeps vega identical.
	target := observedPrice
	if !isCall {
		target = observedPrice + spot - disc
	}

	vol := clampVol(sqrtTwoPiHalf / math.Sqrt(yearsToExpiry) * target / spot)
	for i := 0; i < ivMaxIter; i++ {
		diff := Price(spot, strike, yearsToExpiry, riskFreeRate, vol, true) - target
		if math.Abs(diff) < ivTolerance {
			return vol, true
		}
		vega := rawVega(spot, strike, yearsToExpiry, riskFreeRate, vol)
		if vega < ivMinVega {
			return 0, false
		}
		vol = clampVol(vol - diff/vega)
	}
	return 0, false
}
