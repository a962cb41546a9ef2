package signals

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidEvent is returned when a raw record cannot describe a signal.
var ErrInvalidEvent = errors.New("signals: invalid event")

// Event is the loosely typed record handed over by the detectors.
type Event struct {
	Ticker     string             `json:"ticker"`
	Type       string             `json:"type"`
	Price      float64            `json:"price"`
	DetectedAt time.Time          `json:"detected_at"`
	Attrs      map[string]float64 `json:"attrs"`
}

func (e Event) attr(name string) float64 {
	return e.Attrs[name]
}

func (e Event) flag(name string) bool {
	return e.Attrs[name] != 0
}

// Classify turns a raw event into its typed variant. Unrecognised types
// yield Unknown; a missing ticker or non-positive price is ErrInvalidEvent.
func Classify(e Event) (Signal, error) {
	ticker := strings.ToUpper(strings.TrimSpace(e.Ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrInvalidEvent)
	}
	if e.Price <= 0 {
		return nil, fmt.Errorf("%w: %s price %.4f", ErrInvalidEvent, ticker, e.Price)
	}
	b := Base{Symbol: ticker, Last: e.Price, At: e.DetectedAt}

	switch Kind(strings.ToLower(e.Type)) {
	case KindVolumeSpike:
		return VolumeSpike{Base: b, RVOL: e.attr("rvol"), PriceChangePercent: e.attr("price_change_percent")}, nil
	case KindBlockTrade:
		return BlockTrade{
			Base:               b,
			TradeValue:         e.attr("trade_value"),
			Shares:             e.attr("shares"),
			PriceChangePercent: e.attr("price_change_percent"),
		}, nil
	case KindMomentumSurge:
		return MomentumSurge{Base: b, PriceChangePercent: e.attr("price_change_percent"), WindowMinutes: e.attr("window_minutes")}, nil
	case KindBreakout:
		return Breakout{Base: b, Level: e.attr("level"), Breakdown: e.flag("breakdown")}, nil
	case KindGap:
		return Gap{Base: b, GapPercent: e.attr("gap_percent")}, nil
	case KindVWAPCross:
		return VWAPCross{Base: b, VWAP: e.attr("vwap"), Above: e.Price >= e.attr("vwap")}, nil
	case KindNewHigh:
		return NewHigh{Base: b, PriorHigh: e.attr("prior_high")}, nil
	case KindNewLow:
		return NewLow{Base: b, PriorLow: e.attr("prior_low")}, nil
	case KindRelativeStrength:
		return RelativeStrength{Base: b, VsIndexPercent: e.attr("vs_index_percent")}, nil
	default:
		return Unknown{Base: b, RawType: e.Type}, nil
	}
}

// PriceChangePercent extracts the price move carried by a signal, if any.
func PriceChangePercent(s Signal) float64 {
	switch v := s.(type) {
	case VolumeSpike:
		return v.PriceChangePercent
	case BlockTrade:
		return v.PriceChangePercent
	case MomentumSurge:
		return v.PriceChangePercent
	case Gap:
		return v.GapPercent
	case RelativeStrength:
		return v.VsIndexPercent
	}
	return 0
}

// Describe renders a short human label for logs and breakdowns.
func Describe(s Signal) string {
	switch v := s.(type) {
	case VolumeSpike:
		return fmt.Sprintf("volume spike %.1fx RVOL", v.RVOL)
	case BlockTrade:
		return fmt.Sprintf("block trade $%.0f", v.TradeValue)
	case MomentumSurge:
		return fmt.Sprintf("momentum surge %+.2f%%", v.PriceChangePercent)
	case Breakout:
		if v.Breakdown {
			return fmt.Sprintf("breakdown below %.2f", v.Level)
		}
		return fmt.Sprintf("breakout above %.2f", v.Level)
	case Gap:
		return fmt.Sprintf("gap %+.2f%%", v.GapPercent)
	case VWAPCross:
		if v.Above {
			return "crossed above VWAP"
		}
		return "crossed below VWAP"
	case NewHigh:
		return "new high"
	case NewLow:
		return "new low"
	case RelativeStrength:
		return fmt.Sprintf("relative strength %+.2f%% vs index", v.VsIndexPercent)
	case Unknown:
		return "unrecognised signal " + v.RawType
	}
	return string(s.Kind())
}
