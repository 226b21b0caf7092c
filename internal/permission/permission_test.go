package permission

import (
	"testing"
	"time"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

func strategyRegistry() types.StrategyRegistryContract {
	return types.StrategyRegistryContract{
		StrategiesByID: map[string]types.StrategySpec{
			"K2": {ID: "K2", StrategyClass: "BREAKOUT"},
		},
	}
}

func TestGate1DeniesDeadMarket(t *testing.T) {
	bias := types.BiasState{Regime: types.Regime{Vol: types.VolRegimeLow, Liquidity: types.LiquidityRegimeThin}}
	p := Compute(bias, types.StrategyState{}, strategyRegistry())
	if p.AllowTrade {
		t.Fatal("expected deny on dead market regime")
	}
	if p.StandDownReason != "REGIME_UNSUITABLE: DEAD_MARKET" {
		t.Errorf("unexpected reason: %s", p.StandDownReason)
	}
}

func TestGate2DeniesWithNoStrongBias(t *testing.T) {
	bias := types.BiasState{
		Regime: types.Regime{Vol: types.VolRegimeNormal, Trend: types.TrendRegimeTrending, Liquidity: types.LiquidityRegimeNormal},
		Active: []types.ActiveBias{{BiasID: "X", Strength: 0.1, Confidence: 0.1}},
	}
	p := Compute(bias, types.StrategyState{}, strategyRegistry())
	if p.AllowTrade || p.StandDownReason != "NO_STRONG_BIAS" {
		t.Errorf("expected NO_STRONG_BIAS, got allow=%v reason=%s", p.AllowTrade, p.StandDownReason)
	}
}

func TestGate3DeniesOnSevereConflict(t *testing.T) {
	bias := types.BiasState{
		Regime:    types.Regime{Vol: types.VolRegimeNormal, Trend: types.TrendRegimeTrending, Liquidity: types.LiquidityRegimeNormal},
		Active:    []types.ActiveBias{{BiasID: "A", Strength: 0.8, Confidence: 0.8}},
		Conflicts: []types.BiasConflict{{A: "A", B: "B", Severity: 0.9}},
	}
	p := Compute(bias, types.StrategyState{}, strategyRegistry())
	if p.AllowTrade || p.StandDownReason != "BIAS_CONFLICT: A vs B" {
		t.Errorf("expected BIAS_CONFLICT, got allow=%v reason=%s", p.AllowTrade, p.StandDownReason)
	}
}

func TestGate4DeniesWithNoDominantStrategy(t *testing.T) {
	bias := types.BiasState{
		Regime: types.Regime{Vol: types.VolRegimeNormal, Trend: types.TrendRegimeTrending, Liquidity: types.LiquidityRegimeNormal},
		Active: []types.ActiveBias{{BiasID: "A", Strength: 0.8, Confidence: 0.8}},
	}
	strat := types.StrategyState{Dominance: []types.Dominance{{StrategyID: "K1", DominanceScore: 0.1}}}
	p := Compute(bias, strat, strategyRegistry())
	if p.AllowTrade || p.StandDownReason != "NO_DOMINANT_STRATEGY" {
		t.Errorf("expected NO_DOMINANT_STRATEGY, got allow=%v reason=%s", p.AllowTrade, p.StandDownReason)
	}
}

func TestGate5DeniesWhenTrapsDominant(t *testing.T) {
	bias := types.BiasState{
		Regime: types.Regime{Vol: types.VolRegimeNormal, Trend: types.TrendRegimeTrending, Liquidity: types.LiquidityRegimeNormal},
		Active: []types.ActiveBias{{BiasID: "A", Strength: 0.8, Confidence: 0.8}},
	}
	strat := types.StrategyState{
		Dominance: []types.Dominance{{StrategyID: "K1", DominanceScore: 0.5}},
		Traps: []types.Trap{
			{StrategyID: "K2", TrapScore: 0.8},
			{StrategyID: "K4", TrapScore: 0.9},
		},
	}
	p := Compute(bias, strat, strategyRegistry())
	if p.AllowTrade || p.StandDownReason != "STRATEGY_TRAP_DOMINANT" {
		t.Errorf("expected STRATEGY_TRAP_DOMINANT, got allow=%v reason=%s", p.AllowTrade, p.StandDownReason)
	}
}

func TestAllowsWithRequiredConfirmationAndRiskUnits(t *testing.T) {
	bias := types.BiasState{
		Regime: types.Regime{Vol: types.VolRegimeNormal, Trend: types.TrendRegimeTrending, Liquidity: types.LiquidityRegimeNormal},
		Active: []types.ActiveBias{{BiasID: "TREND_CONTINUATION_BIAS", Strength: 0.8, Confidence: 0.8}},
	}
	strat := types.StrategyState{Dominance: []types.Dominance{{StrategyID: "K2", DominanceScore: 0.5}}}
	p := Compute(bias, strat, strategyRegistry())

	if !p.AllowTrade {
		t.Fatalf("expected allow, got reason=%s", p.StandDownReason)
	}
	if len(p.AllowedPlaybooks) != 1 || p.AllowedPlaybooks[0] != "K2" {
		t.Errorf("expected playbook [K2], got %v", p.AllowedPlaybooks)
	}
	foundF5, foundT5 := false, false
	for _, r := range p.RequiredConfirmation {
		if r == "F5" {
			foundF5 = true
		}
		if r == "T5" {
			foundT5 = true
		}
	}
	if !foundF5 {
		t.Error("expected F5 required for trend bias")
	}
	if !foundT5 {
		t.Error("expected T5 required for breakout-class dominant strategy")
	}
	if p.MaxRiskUnits < 0.5 || p.MaxRiskUnits > 1.0 {
		t.Errorf("expected risk units in [0.5,1.0], got %v", p.MaxRiskUnits)
	}
}

func TestEffectiveThresholdClampsToBounds(t *testing.T) {
	closeTime := time.Date(2026, 7, 30, 15, 50, 0, 0, time.UTC) // Thursday close window
	sig := types.SignalVector{Values: map[string]float64{"atr_14_n": 2.0, "range_compression": 2.0}}
	eff, mods := EffectiveThreshold(0.85, sig, closeTime)
	if eff > thetaMax {
		t.Errorf("expected clamp at %v, got %v", thetaMax, eff)
	}
	if mods["time_of_day"] != modClose15Min {
		t.Errorf("expected close_15min modifier, got %v", mods["time_of_day"])
	}
	if mods["high_volatility"] != modHighVol {
		t.Error("expected high_volatility modifier present")
	}
	if mods["expansion"] != modExpansion {
		t.Error("expected expansion modifier present")
	}
}

func TestEffectiveThresholdMondayModifier(t *testing.T) {
	// 14:00 is in the afternoon slot, whose time-of-day modifier is zero.
	monday := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)
	eff, mods := EffectiveThreshold(0.5, types.SignalVector{}, monday)
	if mods["day_of_week"] != modMonday {
		t.Errorf("expected monday modifier, got %v", mods["day_of_week"])
	}
	if eff != 0.5+modMonday {
		t.Errorf("expected 0.5+%.2f, got %v", modMonday, eff)
	}
}
