// Package detect evaluates the tagged-variant detector specs shared by
// the Bias Engine and Strategy Recognizer. Per spec's redesign notes,
// the original's string-function-path dispatch
// (bias_engine.py::_call_scoring_fn resolving "module.fn" via
// importlib) is replaced with a fixed enumerated Kind plus a small set
// of per-kind parameters, looked up in a Go registry keyed by Kind.
package detect

import "github.com/themirrorplatform/constitutional-trader/pkg/types"

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

type kindFunc func(spec types.DetectorSpec, signals types.SignalVector) float64

var registry = map[string]kindFunc{
	"signal_magnitude": signalMagnitude,
}

// signalMagnitude scores a signal's absolute value against a scale,
// clamped to [0,1]. Invert flips the score (used by detectors that
// fire when a signal is small, e.g. range compression for a dead
// market).
func signalMagnitude(spec types.DetectorSpec, signals types.SignalVector) float64 {
	scale := spec.Scale
	if scale == 0 {
		scale = 1.0
	}
	score := clamp01(abs(signals.Get(spec.Signal)) / scale)
	if spec.Invert {
		return 1.0 - score
	}
	return score
}

// Eval runs spec's detector against signals. An unknown Kind scores 0.
func Eval(spec types.DetectorSpec, signals types.SignalVector) float64 {
	fn, ok := registry[spec.Kind]
	if !ok {
		return 0
	}
	return fn(spec, signals)
}

// EvalAll evaluates every spec in specs and returns their scores in order.
func EvalAll(specs []types.DetectorSpec, signals types.SignalVector) []float64 {
	out := make([]float64, len(specs))
	for i, s := range specs {
		out[i] = Eval(s, signals)
	}
	return out
}

// Mean returns the arithmetic mean of scores, or 0 for an empty slice.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
