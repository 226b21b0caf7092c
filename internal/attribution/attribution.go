// Package attribution classifies a closed trade into one of the A0-A9
// mechanical categories by ordered first-match rule evaluation, scoring
// its process and outcome quality. Grounded word-for-word on
// original_source/engines/attribution.py::attribute, reusing
// internal/rules for condition evaluation rather than reimplementing
// the suffix-operator matcher.
package attribution

import (
	"github.com/themirrorplatform/constitutional-trader/internal/rules"
	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

// Record is the attribution classifier's output for one closed trade.
type Record struct {
	Classification string             `json:"classification"`
	ProcessScore   float64            `json:"process_score"`
	OutcomeScore   float64            `json:"outcome_score"`
	Metrics        map[string]any     `json:"metrics"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Metrics is the trade-level measurements the rule conditions read.
type Metrics struct {
	PnLUSD          float64
	DurationSeconds float64
	SlippageTicks   float64
	SpreadTicks     float64
	EQS             float64
	DVS             float64
}

// Attribute runs the ordered rule set against a trade's metrics,
// falling back to contract.Default when no rule matches.
func Attribute(m Metrics, contract types.AttributionContract) Record {
	metrics := map[string]any{
		"pnl_usd":          m.PnLUSD,
		"duration_seconds": m.DurationSeconds,
		"slippage_ticks":   m.SlippageTicks,
		"spread_ticks":     m.SpreadTicks,
		"eqs":              m.EQS,
		"dvs":              m.DVS,
	}

	chosen := contract.Default
	for _, rule := range contract.Rules {
		if rules.Match(rule.Condition, metrics) {
			chosen = rule
			break
		}
	}

	return Record{
		Classification: chosen.ID,
		ProcessScore:   clamp01(chosen.ProcessScore),
		OutcomeScore:   clamp01(chosen.OutcomeScore),
		Metrics:        metrics,
	}
}
