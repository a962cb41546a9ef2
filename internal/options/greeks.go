package options

import "math"

// Greeks are Black-Scholes sensitivities in trader units: theta per calendar
// day, vega and rho per one point (1%) change.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// ComputeGreeks returns the closed-form Greeks. ok is false when the inputs
// leave the model's domain (no time left, no volatility, non-positive prices).
func ComputeGreeks(spot, strike, yearsToExpiry, riskFreeRate, volatility float64, isCall bool) (Greeks, bool) {
	if spot <= 0 || strike <= 0 || yearsToExpiry <= 0 || volatility <= 0 {
		return Greeks{}, false
	}
	t := yearsToExpiry
	sqrtT := math.Sqrt(t)
	d1, d2 := d1d2(spot, strike, t, riskFreeRate, volatility)
	pdf := NormPDF(d1)
	disc := math.Exp(-riskFreeRate * t)

	g := Greeks{
		Gamma: pdf / (spot * volatility * sqrtT),
		Vega:  spot * pdf * sqrtT / 100,
	}
	decay := -spot * pdf * volatility / (2 * sqrtT)
	if isCall {
		g.Delta = NormCDF(d1)
		g.Theta = (decay - riskFreeRate*strike*disc*NormCDF(d2)) / daysPerYear
		g.Rho = strike * t * disc * NormCDF(d2) / 100
	} else {
		g.Delta = NormCDF(d1) - 1
		g.Theta = (decay + riskFreeRate*strike*disc*NormCDF(-d2)) / daysPerYear
		g.Rho = -strike * t * disc * NormCDF(-d2) / 100
	}
	return g, true
}

// EstimateOptionPriceMove approximates the option's dollar change for an
// underlying move of underlyingPercentMove percent using delta plus the
// second-order gamma term.
func EstimateOptionPriceMove(g Greeks, spot, underlyingPercentMove float64) float64 {
	dS := spot * underlyingPercentMove / 100
	return g.Delta*dS + 0.5*g.Gamma*dS*dS
}
