// Package bias computes per-bar BiasState: which market biases are
// active, the regime triple they imply, and which active biases
// conflict. Grounded on original_source/engines/bias_engine.py
// (activation threshold, regime classification, conflict detection);
// the original's dynamically-dispatched strength/confidence functions
// are replaced with the fixed "mean"/"belief_weighted" kinds below per
// spec's redesign notes, evaluated against detector specs from
// internal/detect.
package bias

import (
	"github.com/themirrorplatform/constitutional-trader/internal/detect"
	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

const (
	strengthActivation   = 0.3
	confidenceActivation = 0.5
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func confidence(spec types.BiasSpec, detectorScores []float64, beliefs types.BeliefState) float64 {
	switch spec.ConfidenceKind {
	case "belief_weighted":
		return clamp01(beliefs.Belief[spec.ConfidenceBelief])
	default:
		return clamp01(detect.Mean(detectorScores))
	}
}

func strength(spec types.BiasSpec, detectorScores []float64) float64 {
	switch spec.StrengthKind {
	case "mean":
		return clamp01(detect.Mean(detectorScores))
	default:
		return clamp01(detect.Mean(detectorScores))
	}
}

// Compute evaluates every registered bias against the current bar's
// signals and beliefs, activates those crossing the strength/confidence
// thresholds, classifies the regime triple, and detects conflicts among
// the active set.
func Compute(signals types.SignalVector, beliefs types.BeliefState, registry types.BiasRegistryContract) types.BiasState {
	var active []types.ActiveBias

	for _, spec := range registry.Biases {
		scores := detect.EvalAll(spec.Detectors, signals)
		s := strength(spec, scores)
		c := confidence(spec, scores, beliefs)
		if s > strengthActivation && c > confidenceActivation {
			active = append(active, types.ActiveBias{
				BiasID:     spec.ID,
				Strength:   s,
				Confidence: c,
			})
		}
	}

	regime := classifyRegime(active, registry)
	conflicts := detectConflicts(active, registry)

	return types.BiasState{Active: active, Regime: regime, Conflicts: conflicts}
}

func hasBias(active []types.ActiveBias, ids ...string) bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, a := range active {
		if set[a.BiasID] {
			return true
		}
	}
	return false
}

func containsSubstr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func classifyRegime(active []types.ActiveBias, registry types.BiasRegistryContract) types.Regime {
	volRegime := types.VolRegimeNormal
	if hasBias(active, "VOLATILITY_EXPANSION_BIAS", "LIQUIDITY_VACUUM_BIAS") {
		volRegime = types.VolRegimeHigh
	} else if hasBias(active, "DEAD_MARKET_BIAS", "MARKET_SILENCE_BIAS") {
		volRegime = types.VolRegimeLow
	}

	trending, ranging := false, false
	for _, a := range active {
		if containsSubstr(a.BiasID, "TREND") {
			trending = true
		}
		if containsSubstr(a.BiasID, "RANGE") || containsSubstr(a.BiasID, "REVERSION") {
			ranging = true
		}
	}
	trendRegime := types.TrendRegimeMixed
	switch {
	case trending && !ranging:
		trendRegime = types.TrendRegimeTrending
	case ranging && !trending:
		trendRegime = types.TrendRegimeRanging
	}

	liqCount := 0
	for _, a := range active {
		spec, ok := registry.BiasesByID[a.BiasID]
		if ok && spec.Category == "LIQUIDITY" {
			liqCount++
		}
	}
	liqRegime := types.LiquidityRegimeNormal
	if hasBias(active, "LIQUIDITY_VACUUM_BIAS") {
		liqRegime = types.LiquidityRegimeThin
	} else if liqCount > 2 {
		liqRegime = types.LiquidityRegimeActive
	}

	return types.Regime{Vol: volRegime, Trend: trendRegime, Liquidity: liqRegime}
}

func detectConflicts(active []types.ActiveBias, registry types.BiasRegistryContract) []types.BiasConflict {
	byID := make(map[string]types.ActiveBias, len(active))
	for _, a := range active {
		byID[a.BiasID] = a
	}

	var conflicts []types.BiasConflict
	for _, a := range active {
		spec, ok := registry.BiasesByID[a.BiasID]
		if !ok {
			continue
		}
		for _, conflictID := range spec.ConflictsWith {
			other, present := byID[conflictID]
			if !present {
				continue
			}
			severity := a.Strength
			if other.Strength < severity {
				severity = other.Strength
			}
			conflicts = append(conflicts, types.BiasConflict{A: a.BiasID, B: conflictID, Severity: severity})
		}
	}
	return conflicts
}
