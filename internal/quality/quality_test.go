package quality

import (
	"testing"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

func execContract() types.ExecutionContract {
	var c types.ExecutionContract
	c.EQS.InitialValue = 1.0
	c.EQS.SlippageMinExpected = 0.01
	c.EQS.DegradationEvents = []types.DegradationEvent{
		{
			ID:        "slippage_high",
			Condition: types.Condition{"slippage_vs_expected_gt": 2.0},
			Penalties: map[string]float64{"eqs_delta": -0.10},
		},
	}
	return c
}

func dataContract() types.DataContract {
	var c types.DataContract
	c.DVS.InitialValue = 1.0
	c.DVS.RecoveryPerBar = 0.02
	c.DVS.DegradationEvents = []types.DegradationEvent{
		{
			ID:        "stale_bar",
			Condition: types.Condition{"bar_lag_seconds_gte": 3.0},
			Penalties: map[string]float64{"dvs_delta": -0.15},
		},
	}
	return c
}

// TestEQSDegradesOnSlippageRatioRule ports
// original_source/tests/test_eqs_degradation_behavior.py: a fill 1.0 away
// from the limit price against an expected slippage of 0.4 produces a
// ratio of 2.5, over the 2.0 threshold, triggering a single -0.10 penalty.
func TestEQSDegradesOnSlippageRatioRule(t *testing.T) {
	state := map[string]any{
		"eqs":               1.0,
		"fill_price":        100.5,
		"limit_price":       99.5,
		"expected_slippage": 0.4,
	}
	score, triggered := ComputeEQS(state, execContract())
	if score != 0.9 {
		t.Errorf("expected eqs 0.9, got %v", score)
	}
	if len(triggered) != 1 || triggered[0] != "slippage_high" {
		t.Errorf("expected [slippage_high] triggered, got %v", triggered)
	}
}

// TestEQSSlippageRatioHandlesZeroExpectedSlippage ports
// original_source/tests/test_eqs_degradation_behavior.py: an
// expected_slippage of zero falls back to the slippage_min_expected eps
// floor rather than dividing by zero.
func TestEQSSlippageRatioHandlesZeroExpectedSlippage(t *testing.T) {
	state := map[string]any{
		"eqs":               1.0,
		"fill_price":        100.5,
		"limit_price":       99.5,
		"expected_slippage": 0.0,
	}
	score, _ := ComputeEQS(state, execContract())
	if score != 0.9 {
		t.Errorf("expected eqs 0.9 via eps floor, got %v", score)
	}
}

func TestEQSAppliesNoRecoveryTerm(t *testing.T) {
	state := map[string]any{"eqs": 0.5}
	score, triggered := ComputeEQS(state, execContract())
	if score != 0.5 {
		t.Errorf("expected eqs unchanged at 0.5 with no recovery term, got %v", score)
	}
	if len(triggered) != 0 {
		t.Errorf("expected no triggers, got %v", triggered)
	}
}

func TestDVSAppliesRecoveryAfterPenalties(t *testing.T) {
	state := map[string]any{
		"dvs":              0.9,
		"bar_lag_seconds":  5.0,
	}
	score, triggered := ComputeDVS(state, dataContract())
	// 0.9 - 0.15 + 0.02 recovery = 0.77
	want := 0.9 - 0.15 + 0.02
	if diff := score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected dvs %.4f, got %.4f", want, score)
	}
	if len(triggered) != 1 || triggered[0] != "stale_bar" {
		t.Errorf("expected [stale_bar] triggered, got %v", triggered)
	}
}

func TestDVSClampsToUnitRange(t *testing.T) {
	state := map[string]any{"dvs": 0.99}
	score, triggered := ComputeDVS(state, dataContract())
	if score != 1.0 {
		t.Errorf("expected clamp to 1.0, got %v", score)
	}
	if len(triggered) != 0 {
		t.Errorf("expected no triggers when condition absent, got %v", triggered)
	}
}

func TestDVSClampsAtZero(t *testing.T) {
	c := dataContract()
	c.DVS.DegradationEvents[0].Penalties["dvs_delta"] = -5.0
	state := map[string]any{"dvs": 0.1, "bar_lag_seconds": 10.0}
	score, _ := ComputeDVS(state, c)
	if score != 0 {
		t.Errorf("expected clamp to 0, got %v", score)
	}
}
