// Package strategyrec computes per-bar StrategyState: which strategy
// archetypes are active, their dominance ranking, and which are traps
// (likely to fail). Grounded on
// original_source/engines/strategy_recognizer.py (bias-support +
// signature-detector probability blend, FADE/ALIGN/STAND_DOWN posture
// rules, top-5 dominance/trap ranking).
package strategyrec

import (
	"sort"

	"github.com/themirrorplatform/constitutional-trader/internal/detect"
	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

const (
	activationThreshold = 0.3
	postureThreshold    = 0.4
	trapThreshold       = 0.6
	fadeThreshold       = 0.3
	topN                = 5
)

func biasSupport(deps []string, activeBiasIDs map[string]bool) float64 {
	if len(deps) == 0 {
		return 0
	}
	matched := 0
	for _, d := range deps {
		if activeBiasIDs[d] {
			matched++
		}
	}
	return float64(matched) / float64(len(deps))
}

func hasPosture(postures []string, want string) bool {
	for _, p := range postures {
		if p == want {
			return true
		}
	}
	return false
}

// Compute evaluates every registered strategy against the current bar's
// signals and bias state.
func Compute(signals types.SignalVector, biasState types.BiasState, registry types.StrategyRegistryContract) types.StrategyState {
	activeBiasIDs := make(map[string]bool, len(biasState.Active))
	for _, id := range biasState.ActiveBiasIDs() {
		activeBiasIDs[id] = true
	}

	var active []types.ActiveStrategy
	var dominance []types.Dominance
	var traps []types.Trap

	for _, spec := range registry.Strategies {
		support := biasSupport(spec.BiasDependencies, activeBiasIDs)
		signatureStrength := detect.Mean(detect.EvalAll(spec.SignatureDetectors, signals))
		failureStrength := detect.Mean(detect.EvalAll(spec.FailureSignatures, signals))

		probability := support*0.5 + signatureStrength*0.5

		posture := types.PostureStandDown
		if probability > postureThreshold {
			switch {
			case failureStrength > trapThreshold:
				posture = types.PostureFade
				traps = append(traps, types.Trap{StrategyID: spec.ID, TrapScore: failureStrength})
			case hasPosture(spec.RecommendedPostures, "ALIGN"):
				posture = types.PostureAlign
				dominance = append(dominance, types.Dominance{
					StrategyID:     spec.ID,
					DominanceScore: probability * (1.0 - failureStrength),
				})
			case hasPosture(spec.RecommendedPostures, "FADE") && failureStrength > fadeThreshold:
				posture = types.PostureFade
			}
		}

		if probability > activationThreshold {
			active = append(active, types.ActiveStrategy{
				StrategyID:  spec.ID,
				Probability: probability,
				Posture:     posture,
			})
		}
	}

	sort.Slice(dominance, func(i, j int) bool { return dominance[i].DominanceScore > dominance[j].DominanceScore })
	sort.Slice(traps, func(i, j int) bool { return traps[i].TrapScore > traps[j].TrapScore })

	if len(dominance) > topN {
		dominance = dominance[:topN]
	}
	if len(traps) > topN {
		traps = traps[:topN]
	}

	return types.StrategyState{Active: active, Dominance: dominance, Traps: traps}
}
