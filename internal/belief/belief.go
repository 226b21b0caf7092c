// Package belief computes Tier-1 constraint beliefs from the current
// bar's signals plus the prior belief state. Ported word-for-word from
// original_source/engines/belief.py: weighted-normalised-signal
// blending with per-constraint decay, optional tier normalisation
// (independent/softmax/sum1), and a stability EWMA of normalised
// absolute price change.
package belief

import (
	"math"
	"sort"

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

// normalizeSignal scales a raw signal value into [0,1] using its
// configured min/max. A signal with no configured range is assumed
// already normalised and is only clamped.
func normalizeSignal(value float64, norm types.SignalNorm, configured bool) float64 {
	if !configured || norm.Max == norm.Min {
		return clamp01(value)
	}
	return clamp01((value - norm.Min) / (norm.Max - norm.Min))
}

// Update advances every configured constraint's belief and stability
// one bar. signals is the current bar's SignalVector; lastPrice is the
// bar's close, used only for the stability EWMA. prev is the prior
// BeliefState (zero value is a valid "no history yet" state).
func Update(signals types.SignalVector, lastPrice float64, prev types.BeliefState, contract types.BeliefContract) types.BeliefState {
	beliefs := make(map[string]float64, len(contract.Constraints))

	for _, c := range contract.Constraints {
		if len(c.Weights) == 0 {
			continue
		}
		prevBelief := prev.Belief[c.ID]

		score := 0.0
		totalW := 0.0
		for sig, w := range c.Weights {
			if w < 0 {
				w = 0
			}
			totalW += w
			norm, configured := contract.SignalNorms[sig]
			score += w * normalizeSignal(signals.Get(sig), norm, configured)
		}
		if totalW <= 0 {
			// All weights zero: hold at the prior belief rather than decay
			// toward a meaningless zero score.
			beliefs[c.ID] = clamp01(prevBelief)
			continue
		}
		score /= totalW
		blended := (1.0-c.DecayLambda)*score + c.DecayLambda*prevBelief
		beliefs[c.ID] = clamp01(blended)
	}

	switch contract.NormalizeMode {
	case "softmax":
		beliefs = softmax(beliefs)
	case "sum1":
		beliefs = sum1(beliefs)
	}

	alpha := contract.Stability.Alpha
	normDelta := 0.0
	if prev.PrevPrice > 0 && lastPrice > 0 {
		deltaPct := math.Abs(lastPrice-prev.PrevPrice) / math.Max(prev.PrevPrice, 1e-9)
		normDelta = clamp01(deltaPct / 0.05)
	}

	stability := make(map[string]float64, len(beliefs))
	for cid := range beliefs {
		prevS := prev.Stability[cid]
		stability[cid] = clamp01(alpha*normDelta + (1.0-alpha)*prevS)
	}

	topConstraints := make([]string, 0, len(beliefs))
	for cid := range beliefs {
		topConstraints = append(topConstraints, cid)
	}
	sort.Slice(topConstraints, func(i, j int) bool {
		if beliefs[topConstraints[i]] != beliefs[topConstraints[j]] {
			return beliefs[topConstraints[i]] > beliefs[topConstraints[j]]
		}
		return topConstraints[i] < topConstraints[j]
	})

	return types.BeliefState{
		Belief:         beliefs,
		Stability:      stability,
		PrevPrice:      lastPrice,
		TopConstraints: topConstraints,
	}
}

// softmax renormalises beliefs to sum to 1 via a numerically stable
// exponential, matching original_source's tier-normalisation mode.
func softmax(beliefs map[string]float64) map[string]float64 {
	if len(beliefs) == 0 {
		return beliefs
	}
	maxV := math.Inf(-1)
	for _, v := range beliefs {
		if v > maxV {
			maxV = v
		}
	}
	exps := make(map[string]float64, len(beliefs))
	z := 0.0
	for k, v := range beliefs {
		e := math.Exp(v - maxV)
		exps[k] = e
		z += e
	}
	if z <= 0 {
		return beliefs
	}
	out := make(map[string]float64, len(beliefs))
	for k, e := range exps {
		out[k] = e / z
	}
	return out
}

// sum1 renormalises beliefs to sum to 1 by simple proportional scaling,
// then re-clamps to [0,1] (matching original_source's sum1 mode, which
// clamps after normalising even though a positive sum-to-1 split never
// needs it).
func sum1(beliefs map[string]float64) map[string]float64 {
	if len(beliefs) == 0 {
		return beliefs
	}
	s := 0.0
	for _, v := range beliefs {
		s += v
	}
	out := make(map[string]float64, len(beliefs))
	if s > 0 {
		for k, v := range beliefs {
			out[k] = clamp01(v / s)
		}
		return out
	}
	for k, v := range beliefs {
		out[k] = clamp01(v)
	}
	return out
}
