// Package quality computes the Data Viability Score (DVS) and Execution
// Quality Score (EQS) from declarative degradation rules (spec §4.4).
// Both are pure functions of a state map and the contract's rule set; no
// hidden history beyond the prior score carried in state["dvs"]/["eqs"].
// Grounded on original_source/tests/test_eqs_degradation_behavior.py for
// the exact slippage-ratio-with-eps-floor semantics.
package quality

import (
	"github.com/themirrorplatform/constitutional-trader/internal/rules"
	"github.com/themirrorplatform/constitutional-trader/pkg/types"
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

func asFloat(m map[string]any, key string, def float64) float64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	}
	return def
}

// ComputeDVS advances the Data Viability Score. state carries the prior
// score at "dvs" plus the current data-quality metrics (e.g.
// bar_lag_seconds, gap_detected, missing_fields). Ordering: all matched
// penalties apply, then per-bar recovery, then the result is clamped to
// [0,1].
func ComputeDVS(state map[string]any, contract types.DataContract) (score float64, triggered []string) {
	score = asFloat(state, "dvs", contract.DVS.InitialValue)

	for _, ev := range contract.DVS.DegradationEvents {
		if rules.Match(ev.Condition, state) {
			score += ev.Penalties["dvs_delta"]
			triggered = append(triggered, ev.ID)
		}
	}

	score += contract.DVS.RecoveryPerBar
	if score > 1.0 {
		score = 1.0
	}
	return clamp01(score), triggered
}

// ComputeEQS advances the Execution Quality Score. state carries the
// prior score at "eqs" plus fill_price/limit_price/expected_slippage (or
// any other fields a rule's condition names). A derived
// "slippage_vs_expected" metric is computed and injected before rule
// evaluation, with slippage_min_expected acting as an epsilon floor so a
// zero expected_slippage still produces a (large) ratio rather than a
// divide-by-zero.
func ComputeEQS(state map[string]any, contract types.ExecutionContract) (score float64, triggered []string) {
	score = asFloat(state, "eqs", contract.EQS.InitialValue)

	metrics := make(map[string]any, len(state)+1)
	for k, v := range state {
		metrics[k] = v
	}
	eps := contract.EQS.SlippageMinExpected
	if eps <= 0 {
		eps = 0.01
	}
	if _, hasFill := state["fill_price"]; hasFill {
		fillPrice := asFloat(state, "fill_price", 0)
		limitPrice := asFloat(state, "limit_price", 0)
		expected := asFloat(state, "expected_slippage", 0)
		denom := expected
		if denom < eps {
			denom = eps
		}
		diff := fillPrice - limitPrice
		if diff < 0 {
			diff = -diff
		}
		metrics["slippage_vs_expected"] = diff / denom
	}

	for _, ev := range contract.EQS.DegradationEvents {
		if rules.Match(ev.Condition, metrics) {
			score += ev.Penalties["eqs_delta"]
			triggered = append(triggered, ev.ID)
		}
	}

	return clamp01(score), triggered
}
