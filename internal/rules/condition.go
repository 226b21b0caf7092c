// Package rules evaluates the declarative Condition maps shared by the
// DVS/EQS degradation events, the risk model's kill-switch triggers, and
// the trade attribution classifier. A condition key is a metric name
// with a comparison-operator suffix (_gte, _gt, _lte, _lt, _eq); the
// condition matches when every key's comparison holds against the
// supplied metrics map. Grounded on
// original_source/engines/attribution.py::_matches_condition and the
// identical suffix convention used by DVS/EQS (original_source/tests/
// test_eqs_degradation_behavior.py).
package rules

import (
	"strconv"
	"strings"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

// Match reports whether every key in cond holds against metrics.
func Match(cond types.Condition, metrics map[string]any) bool {
	for key, want := range cond {
		metric, op, ok := splitSuffix(key)
		if !ok {
			return false
		}
		got, present := metrics[metric]
		if !present {
			return false
		}
		if !compare(got, op, want) {
			return false
		}
	}
	return true
}

func splitSuffix(key string) (metric, op string, ok bool) {
	for _, suffix := range []string{"_gte", "_gt", "_lte", "_lt", "_eq"} {
		if strings.HasSuffix(key, suffix) {
			return strings.TrimSuffix(key, suffix), strings.TrimPrefix(suffix, "_"), true
		}
	}
	return "", "", false
}

func compare(got any, op string, want any) bool {
	if op == "eq" {
		return equalAny(got, want)
	}
	gf, gok := asFloat(got)
	wf, wok := asFloat(want)
	if !gok || !wok {
		return false
	}
	switch op {
	case "gte":
		return gf >= wf
	case "gt":
		return gf > wf
	case "lte":
		return gf <= wf
	case "lt":
		return gf < wf
	default:
		return false
	}
}

func equalAny(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}
	return toString(a) == toString(b)
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
