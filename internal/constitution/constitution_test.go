package constitution

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

func baseIntent() types.OrderIntent {
	return types.OrderIntent{
		Quantity:  1,
		EntryType: types.EntryTypeLimit,
		Bracket: types.Bracket{
			StopPrice:   decimal.NewFromInt(100),
			TargetPrice: decimal.NewFromInt(110),
		},
	}
}

func baseArgs() (types.RiskState, types.SessionContract, types.RiskModelContract, types.ConstitutionContract) {
	risk := types.RiskState{DailyPnL: decimal.NewFromInt(0)}
	session := types.SessionContract{
		FlattenDeadline: "15:55",
		NoTradeWindows: []types.NoTradeWindow{
			{ID: "open", Start: "09:30", End: "09:35"},
		},
	}
	riskModel := types.RiskModelContract{
		MaxDailyLoss:         decimal.NewFromInt(30),
		MaxConsecutiveLosses: 2,
		MaxTradesPerDay:      2,
		MaxPosition:          1,
	}
	con := types.ConstitutionContract{DVSMinForEntry: 0.80, EQSMinForEntry: 0.75}
	return risk, session, riskModel, con
}

func TestAllowsWhenAllGatesPass(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	v := Check(baseIntent(), risk, 0, "10:00", 0.9, 0.9, session, riskModel, con)
	if !v.Allow || v.Reason != "passed_all_checks" {
		t.Fatalf("expected allow, got %+v", v)
	}
}

func TestRejectsOnDailyLossExceeded(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	risk.DailyPnL = decimal.NewFromInt(-30)
	v := Check(baseIntent(), risk, 0, "10:00", 0.9, 0.9, session, riskModel, con)
	if v.Allow || v.Reason != "daily_loss_exceeded" {
		t.Errorf("expected daily_loss_exceeded, got %+v", v)
	}
}

func TestRejectsOnConsecutiveLosses(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	risk.ConsecutiveLosses = 2
	v := Check(baseIntent(), risk, 0, "10:00", 0.9, 0.9, session, riskModel, con)
	if v.Reason != "consecutive_loss_pause" {
		t.Errorf("expected consecutive_loss_pause, got %+v", v)
	}
}

func TestRejectsOnMaxTradesReached(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	risk.TradesToday = 2
	v := Check(baseIntent(), risk, 0, "10:00", 0.9, 0.9, session, riskModel, con)
	if v.Reason != "max_trades_reached" {
		t.Errorf("expected max_trades_reached, got %+v", v)
	}
}

func TestRejectsOnMaxPositionExceeded(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	v := Check(baseIntent(), risk, 1, "10:00", 0.9, 0.9, session, riskModel, con)
	if v.Reason != "max_position_exceeded" {
		t.Errorf("expected max_position_exceeded, got %+v", v)
	}
}

func TestRejectsPastFlattenDeadline(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	v := Check(baseIntent(), risk, 0, "15:56", 0.9, 0.9, session, riskModel, con)
	if v.Reason != "past_flatten_deadline" {
		t.Errorf("expected past_flatten_deadline, got %+v", v)
	}
}

func TestRejectsInNoTradeWindow(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	v := Check(baseIntent(), risk, 0, "09:32", 0.9, 0.9, session, riskModel, con)
	if v.Reason != "no_trade_window" {
		t.Errorf("expected no_trade_window, got %+v", v)
	}
}

func TestRejectsOnLowDVS(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	v := Check(baseIntent(), risk, 0, "10:00", 0.5, 0.9, session, riskModel, con)
	if v.Reason != "dvs_too_low" {
		t.Errorf("expected dvs_too_low, got %+v", v)
	}
}

func TestRejectsOnLowEQS(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	v := Check(baseIntent(), risk, 0, "10:00", 0.9, 0.5, session, riskModel, con)
	if v.Reason != "eqs_too_low" {
		t.Errorf("expected eqs_too_low, got %+v", v)
	}
}

func TestRejectsWhenKillSwitchActive(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	risk.KillSwitchActive = true
	v := Check(baseIntent(), risk, 0, "10:00", 0.9, 0.9, session, riskModel, con)
	if v.Reason != "kill_switch_active" {
		t.Errorf("expected kill_switch_active, got %+v", v)
	}
}

func TestRejectsMarketEntries(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	intent := baseIntent()
	intent.EntryType = types.EntryTypeMarket
	v := Check(intent, risk, 0, "10:00", 0.9, 0.9, session, riskModel, con)
	if v.Reason != "no_market_entries" {
		t.Errorf("expected no_market_entries, got %+v", v)
	}
}

func TestRejectsMissingBracket(t *testing.T) {
	risk, session, riskModel, con := baseArgs()
	intent := baseIntent()
	intent.Bracket = types.Bracket{}
	v := Check(intent, risk, 0, "10:00", 0.9, 0.9, session, riskModel, con)
	if v.Reason != "bracket_required" {
		t.Errorf("expected bracket_required, got %+v", v)
	}
}
