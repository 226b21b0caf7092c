// Package selector picks the highest-scoring eligible strategy template
// and emits a TRADE or NO_TRADE Decision. No original_source/ file
// implements this stage directly (query_decision.py is a read-only
// debug query against a persisted DECISION_1M event, not a selector);
// this package is grounded directly on spec §4.8's eligibility,
// scoring, and tie-break rules.
package selector

import (
	"sort"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

const (
	beliefMatchWeight       = 0.5
	confirmationStrengthWeight = 0.5
)

// Select runs the strategy selector for one bar: it filters eligible
// templates, scores each, and picks the highest scorer (ties broken by
// lowest template id). A template is eligible only if every bias it
// depends on is currently active and its id is among the permission
// layer's allowed playbooks. TRADE requires score strictly greater than
// theta (a score == theta tie is NO_TRADE, per spec's boundary rule) and
// every required-confirmation signal/belief above its threshold.
func Select(
	signals types.SignalVector,
	beliefs types.BeliefState,
	biasState types.BiasState,
	permission types.Permission,
	strategy types.StrategyTemplatesContract,
	biasRegistry types.BiasRegistryContract,
	theta float64,
	thetaModifiers map[string]float64,
	confirmationThreshold float64,
) types.Decision {
	base := types.Decision{
		Outcome:        types.DecisionNoTrade,
		Theta:          theta,
		ThetaModifiers: thetaModifiers,
		ReasonVector:   map[string]any{},
	}

	if !permission.AllowTrade {
		base.Reason = "permission denied"
		return base
	}

	eligible := eligibleTemplates(strategy, permission, biasState)
	if len(eligible) == 0 {
		base.Reason = "no eligible template"
		return base
	}

	type scored struct {
		template types.StrategyTemplate
		score    float64
	}
	scores := make([]scored, 0, len(eligible))
	for _, t := range eligible {
		scores = append(scores, scored{t, scoreTemplate(t, signals, beliefs, biasRegistry)})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].template.ID < scores[j].template.ID
	})

	best := scores[0]
	base.TemplateID = best.template.ID
	base.Score = best.score
	base.ReasonVector["signals"] = signals.Values
	base.ReasonVector["beliefs"] = beliefs.Belief
	base.ReasonVector["template_id"] = best.template.ID
	base.ReasonVector["score"] = best.score

	if best.score <= theta {
		base.Reason = "score below theta"
		return base
	}

	missing := missingConfirmation(best.template, signals, beliefs, confirmationThreshold)
	if len(missing) > 0 {
		base.Reason = "missing confirmation"
		base.ReasonVector["missing_confirmation"] = missing
		return base
	}

	base.Outcome = types.DecisionTrade
	return base
}

func eligibleTemplates(strategy types.StrategyTemplatesContract, permission types.Permission, biasState types.BiasState) []types.StrategyTemplate {
	allowed := make(map[string]bool, len(permission.AllowedPlaybooks))
	for _, id := range permission.AllowedPlaybooks {
		allowed[id] = true
	}
	active := make(map[string]bool, len(biasState.Active))
	for _, b := range biasState.Active {
		active[b.BiasID] = true
	}

	var out []types.StrategyTemplate
	for _, t := range strategy.StrategyTemplates {
		if !allowed[t.ID] {
			continue
		}
		if !allBiasesActive(t.BiasDependencies, active) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func allBiasesActive(deps []string, active map[string]bool) bool {
	if len(deps) == 0 {
		return false
	}
	for _, d := range deps {
		if !active[d] {
			return false
		}
	}
	return true
}

// scoreTemplate combines average belief support across the template's
// bias dependencies (via each bias's registered confidence belief) with
// average strength of its required-confirmation signals/beliefs.
func scoreTemplate(t types.StrategyTemplate, signals types.SignalVector, beliefs types.BeliefState, registry types.BiasRegistryContract) float64 {
	beliefMatch := 0.0
	if len(t.BiasDependencies) > 0 {
		sum := 0.0
		n := 0
		for _, biasID := range t.BiasDependencies {
			if spec, ok := registry.BiasesByID[biasID]; ok && spec.ConfidenceBelief != "" {
				sum += beliefs.Belief[spec.ConfidenceBelief]
				n++
			}
		}
		if n > 0 {
			beliefMatch = sum / float64(n)
		}
	}

	confirmation := 0.0
	if len(t.RequiredConfirmation) > 0 {
		sum := 0.0
		for _, id := range t.RequiredConfirmation {
			sum += lookupReasonValue(id, signals, beliefs)
		}
		confirmation = sum / float64(len(t.RequiredConfirmation))
	}

	return beliefMatchWeight*beliefMatch + confirmationStrengthWeight*confirmation
}

// missingConfirmation returns the ids among the template's required
// confirmations whose value does not exceed threshold.
func missingConfirmation(t types.StrategyTemplate, signals types.SignalVector, beliefs types.BeliefState, threshold float64) []string {
	var missing []string
	for _, id := range t.RequiredConfirmation {
		if lookupReasonValue(id, signals, beliefs) <= threshold {
			missing = append(missing, id)
		}
	}
	return missing
}

// lookupReasonValue resolves a required-confirmation id: belief
// constraint ids ("F1".."F5") read from beliefs, everything else reads
// from the signal vector. T-series ids not yet computed by the signal
// engine contribute 0.
func lookupReasonValue(id string, signals types.SignalVector, beliefs types.BeliefState) float64 {
	if len(id) > 0 && id[0] == 'F' {
		if v, ok := beliefs.Belief[id]; ok {
			return v
		}
	}
	return signals.Get(id)
}
