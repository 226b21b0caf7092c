// Package permission computes trade Permission from BiasState and
// StrategyState through five ordered gates, and derives the effective
// decision threshold θ from time/day/regime/conflict context. Grounded
// on original_source/engines/permission_layer.py (gate order and
// reject reasons, risk-unit/required-confirmation derivation) and
// original_source/engines/threshold_modifiers.py (modifier tables).
package permission

import (
	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

const (
	minBiasStrength        = 0.4
	minBiasConfidence      = 0.6
	minStrategyProbability = 0.4
	maxConflictSeverity    = 0.5
	strongBiasThreshold    = 0.6
	trapScoreThreshold     = 0.7
)

func containsSubstr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func deny(reason string) types.Permission {
	return types.Permission{AllowTrade: false, StandDownReason: reason}
}

// Compute runs the five permission gates in order; the first failing
// gate short-circuits with its reason. registry resolves a dominant
// strategy id to its StrategyClass for the breakout-confirmation rule.
func Compute(biasState types.BiasState, strategyState types.StrategyState, registry types.StrategyRegistryContract) types.Permission {
	// Gate 1: regime suitability.
	if reason, ok := checkRegimeGate(biasState); !ok {
		return deny("REGIME_UNSUITABLE: " + reason)
	}

	// Gate 2: bias quality.
	var strongBiases []types.ActiveBias
	for _, b := range biasState.Active {
		if b.Strength >= minBiasStrength && b.Confidence >= minBiasConfidence {
			strongBiases = append(strongBiases, b)
		}
	}
	if len(strongBiases) == 0 {
		return deny("NO_STRONG_BIAS")
	}

	// Gate 3: bias conflicts.
	for _, c := range biasState.Conflicts {
		if c.Severity >= maxConflictSeverity {
			return deny("BIAS_CONFLICT: " + c.A + " vs " + c.B)
		}
	}

	// Gate 4: dominant strategy.
	var dominant []types.Dominance
	for _, d := range strategyState.Dominance {
		if d.DominanceScore >= minStrategyProbability {
			dominant = append(dominant, d)
		}
	}
	if len(dominant) == 0 {
		return deny("NO_DOMINANT_STRATEGY")
	}

	// Gate 5: traps dominant.
	trapCount := 0
	for _, t := range strategyState.Traps {
		if t.TrapScore > trapScoreThreshold {
			trapCount++
		}
	}
	if trapCount > len(dominant) {
		return deny("STRATEGY_TRAP_DOMINANT")
	}

	allowedPlaybooks := make([]string, len(dominant))
	for i, d := range dominant {
		allowedPlaybooks[i] = d.StrategyID
	}

	return types.Permission{
		AllowTrade:           true,
		AllowedDirections:    []types.Direction{types.DirectionLong, types.DirectionShort},
		AllowedPlaybooks:     allowedPlaybooks,
		MaxRiskUnits:         computeRiskUnits(biasState, strategyState),
		RequiredConfirmation: requiredConfirmation(biasState, strategyState, registry),
	}
}

func checkRegimeGate(biasState types.BiasState) (reason string, ok bool) {
	regime := biasState.Regime

	if regime.Vol == types.VolRegimeLow && regime.Liquidity == types.LiquidityRegimeThin {
		return "DEAD_MARKET", false
	}
	if regime.Liquidity == types.LiquidityRegimeThin && regime.Vol == types.VolRegimeHigh {
		return "LIQUIDITY_VACUUM", false
	}
	if regime.Trend == types.TrendRegimeMixed {
		strongCount := 0
		for _, b := range biasState.Active {
			if b.Strength > strongBiasThreshold {
				strongCount++
			}
		}
		if strongCount < 2 {
			return "MIXED_REGIME_WEAK_BIAS", false
		}
	}
	return "", true
}

// computeRiskUnits scales max risk units between [0.5,1.0] by average
// bias confidence and the top strategy's dominance score.
func computeRiskUnits(biasState types.BiasState, strategyState types.StrategyState) float64 {
	if len(biasState.Active) == 0 || len(strategyState.Dominance) == 0 {
		return 0
	}
	sumConf := 0.0
	for _, b := range biasState.Active {
		sumConf += b.Confidence
	}
	avgBiasConf := sumConf / float64(len(biasState.Active))
	topDominance := strategyState.Dominance[0].DominanceScore

	combined := avgBiasConf*0.6 + topDominance*0.4
	return clamp(combined, 0.5, 1.0)
}

// requiredConfirmation derives confirmation signal ids from active
// bias/strategy categories: reversion biases require F4 (value factor),
// trend biases require F5 (momentum factor), a breakout-class dominant
// strategy requires T5 (volatility/volume proxy).
func requiredConfirmation(biasState types.BiasState, strategyState types.StrategyState, registry types.StrategyRegistryContract) []string {
	var required []string

	reversionActive := false
	trendActive := false
	for _, b := range biasState.Active {
		if containsSubstr(b.BiasID, "REVERSION") {
			reversionActive = true
		}
		if containsSubstr(b.BiasID, "TREND") {
			trendActive = true
		}
	}
	if reversionActive {
		required = append(required, "F4")
	}
	if trendActive {
		required = append(required, "F5")
	}

	for _, d := range strategyState.Dominance {
		spec, ok := registry.StrategiesByID[d.StrategyID]
		if ok && spec.StrategyClass == "BREAKOUT" {
			required = append(required, "T5")
			break
		}
	}

	return required
}
