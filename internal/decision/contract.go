package decision

import (
	"math"
	"time"

	"github.com/Rajchodisetti/heat-engine/internal/options"
	"github.com/Rajchodisetti/heat-engine/internal/signals"
)

// OptionSuggestion is the contract the recommendation points at.
type OptionSuggestion struct {
	Type                   string    `json:"type"` // "call" | "put"
	Strike                 float64   `json:"strike"`
	ExpirationDate         time.Time `json:"expiration_date"`
	DaysToExpiration       int       `json:"days_to_expiration"`
	EstimatedPremium       float64   `json:"estimated_premium"`
	SuggestedContractCount int       `json:"suggested_contract_count"`
	ImpliedVol             float64   `json:"implied_vol"`
}

// IsCall reports whether the suggestion is a call.
func (o OptionSuggestion) IsCall() bool {
	return o.Type == "call"
}

// OptionQuote is an observed price for a listed contract. When supplied the
// builder solves implied volatility from it instead of using the default IV.
type OptionQuote struct {
	Strike     float64   `json:"strike"`
	Expiration time.Time `json:"expiration"`
	Premium    float64   `json:"premium"`
	IsCall     bool      `json:"is_call"`
}

// strikeInterval returns the listing interval for a given spot.
func strikeInterval(spot float64, bands []StrikeBand) float64 {
	for _, b := range bands {
		if b.MaxPrice <= 0 || spot < b.MaxPrice {
			return b.Interval
		}
	}
	if n := len(bands); n > 0 {
		return bands[n-1].Interval
	}
	return 1
}

// selectStrike offsets spot by otm in the trade's direction and rounds out
// to the next listed strike: up for calls, down for puts.
func selectStrike(spot, otm float64, dir signals.Direction, bands []StrikeBand) float64 {
	interval := strikeInterval(spot, bands)
	const eps = 1e-9
	var strike float64
	if dir == signals.Bearish {
		strike = math.Floor(spot*(1-otm)/interval+eps) * interval
		if strike <= 0 {
			strike = interval
		}
	} else {
		strike = math.Ceil(spot*(1+otm)/interval-eps) * interval
	}
	return roundCents(strike)
}

// selectExpiration picks the expiry for a target DTE. Short-dated targets
// use daily expiries rolled past the weekend; anything longer lands on the
// Friday on or after the target date.
func selectExpiration(now time.Time, dte int) (time.Time, int) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	exp := today.AddDate(0, 0, dte)
	if dte <= 2 {
		for exp.Weekday() == time.Saturday || exp.Weekday() == time.Sunday {
			exp = exp.AddDate(0, 0, 1)
		}
	} else {
		for exp.Weekday() != time.Friday {
			exp = exp.AddDate(0, 0, 1)
		}
	}
	days := int(math.Round(exp.Sub(today).Hours() / 24))
	return exp, days
}

func (b *Builder) priceContract(spot float64, sug *OptionSuggestion, vol float64) {
	days := math.Max(float64(sug.DaysToExpiration), b.cfg.MinPricingDays)
	premium := options.Price(spot, sug.Strike, days/365, b.cfg.RiskFreeRate, vol, sug.IsCall())
	premium = math.Max(roundCents(premium), 0.01)
	sug.EstimatedPremium = premium
	sug.ImpliedVol = vol
	sug.SuggestedContractCount = int(math.Max(1, math.Floor(b.cfg.PositionNotional/(premium*100))))
}

// solveQuoteIV turns an observed option quote into an implied volatility.
func (b *Builder) solveQuoteIV(spot float64, q *OptionQuote, now time.Time) (float64, bool) {
	if q == nil || q.Premium <= 0 {
		return 0, false
	}
	days := math.Max(q.Expiration.Sub(now).Hours()/24, b.cfg.MinPricingDays)
	return options.ImpliedVolatility(q.Premium, spot, q.Strike, days/365, b.cfg.RiskFreeRate, q.IsCall)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
