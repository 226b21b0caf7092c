package permission

import (
	"time"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

const (
	thetaMin = 0.3
	thetaMax = 0.9

	modOpen30Min     = 0.00
	modMorningTrend  = -0.05
	modLunch         = 0.10
	modAfternoon     = 0.00
	modPowerHour     = -0.05
	modClose15Min    = 0.15
	modMonday        = 0.05
	modFridayPre     = 0.05
	modFridayClose   = 0.10
	modHighVol       = 0.10
	modLowVol        = -0.05
	modCompression   = -0.03
	modExpansion     = 0.05
	modConflict      = 0.15
)

// EffectiveThreshold computes θ_effective = clamp(θ_base + Σ modifiers,
// 0.3, 0.9) and the named modifiers that contributed, grounded on
// original_source/engines/threshold_modifiers.py's time-of-day,
// day-of-week, regime, and strategy-conflict modifier tables.
func EffectiveThreshold(base float64, signals types.SignalVector, now time.Time) (effective float64, modifiers map[string]float64) {
	modifiers = make(map[string]float64)

	if m := timeModifier(now); m != 0 {
		modifiers["time_of_day"] = m
	}
	if m := dayModifier(now); m != 0 {
		modifiers["day_of_week"] = m
	}
	for k, v := range regimeModifiers(signals) {
		modifiers[k] = v
	}
	if conflictModifier(signals) {
		modifiers["strategy_conflict"] = modConflict
	}

	total := 0.0
	for _, v := range modifiers {
		total += v
	}

	effective = base + total
	if effective < thetaMin {
		effective = thetaMin
	}
	if effective > thetaMax {
		effective = thetaMax
	}
	return effective, modifiers
}

func timeModifier(now time.Time) float64 {
	h, m, _ := now.Clock()
	mins := h*60 + m

	switch {
	case mins >= 9*60+30 && mins < 10*60:
		return modOpen30Min
	case mins >= 10*60 && mins < 11*60+30:
		return modMorningTrend
	case mins >= 11*60+30 && mins < 13*60:
		return modLunch
	case mins >= 13*60 && mins < 15*60:
		return modAfternoon
	case mins >= 15*60 && mins < 15*60+45:
		return modPowerHour
	case mins >= 15*60+45 && mins < 16*60:
		return modClose15Min
	default:
		return 0
	}
}

func dayModifier(now time.Time) float64 {
	weekday := now.Weekday()
	h, m, _ := now.Clock()
	mins := h*60 + m

	switch weekday {
	case time.Monday:
		return modMonday
	case time.Friday:
		if mins < 14*60 {
			return modFridayPre
		}
		return modFridayClose
	default:
		return 0
	}
}

func regimeModifiers(signals types.SignalVector) map[string]float64 {
	mods := make(map[string]float64)

	if atrN, ok := signals.Values["atr_14_n"]; ok {
		switch {
		case atrN > 1.5:
			mods["high_volatility"] = modHighVol
		case atrN < 0.7:
			mods["low_volatility"] = modLowVol
		}
	}

	if rangeComp, ok := signals.Values["range_compression"]; ok {
		switch {
		case rangeComp < 0.5:
			mods["compression"] = modCompression
		case rangeComp > 1.5:
			mods["expansion"] = modExpansion
		}
	}

	return mods
}

// conflictModifier reports whether contradictory strategy patterns are
// active: reversion (|vwap_z| > 2.0) alongside trend
// (|hhll_trend_strength| > 0.6), or a breakout signal inside a still-
// compressed range (false-breakout risk).
func conflictModifier(signals types.SignalVector) bool {
	vwapZ := signals.Values["vwap_z"]
	hhllTrend := signals.Values["hhll_trend_strength"]
	reversionActive := abs(vwapZ) > 2.0
	trendActive := abs(hhllTrend) > 0.6
	if reversionActive && trendActive {
		return true
	}

	rangeComp, hasRangeComp := signals.Values["range_compression"]
	if !hasRangeComp {
		rangeComp = 1.0
	}
	breakoutActive := signals.Values["sweep_then_reject"] > 0.5
	compressionActive := rangeComp < 0.6
	return breakoutActive && compressionActive
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
