// Package constitution is the constitutional filter: a deterministic,
// ordered gate chain that hard-rejects an OrderIntent at the first
// matching violation. Gate order and reject reasons are grounded
// word-for-word on
// original_source/broker_gateway/ibkr/constitutional_filter.py
// (daily loss through eqs_too_low); kill_switch_active,
// no_market_entries, and bracket_required extend that chain per spec
// §4.9. No-trade-window semantics are grounded on
// original_source/broker_gateway/ibkr/session_manager.py.
package constitution

import (
	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

// Verdict is the filter's outcome: ALLOW with "passed_all_checks", or
// REJECT with the first matching gate's reason.
type Verdict struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
}

func allow() Verdict  { return Verdict{Allow: true, Reason: "passed_all_checks"} }
func reject(r string) Verdict { return Verdict{Allow: false, Reason: r} }

// Check runs the constitutional filter's gate chain in declared order
// against one proposed OrderIntent. nowLocal is "HH:MM" in the
// instrument's session timezone; currentPosition is the signed open
// quantity before this intent.
func Check(
	intent types.OrderIntent,
	risk types.RiskState,
	currentPosition int,
	nowLocal string,
	dvs, eqs float64,
	session types.SessionContract,
	riskModel types.RiskModelContract,
	con types.ConstitutionContract,
) Verdict {
	if risk.DailyPnL.LessThanOrEqual(riskModel.MaxDailyLoss.Neg()) {
		return reject("daily_loss_exceeded")
	}
	if risk.ConsecutiveLosses >= riskModel.MaxConsecutiveLosses {
		return reject("consecutive_loss_pause")
	}
	if risk.TradesToday >= riskModel.MaxTradesPerDay {
		return reject("max_trades_reached")
	}
	if currentPosition+intent.Quantity > riskModel.MaxPosition {
		return reject("max_position_exceeded")
	}
	if nowLocal >= session.FlattenDeadline {
		return reject("past_flatten_deadline")
	}
	if inNoTradeWindow(nowLocal, session.NoTradeWindows) {
		return reject("no_trade_window")
	}
	if dvs < con.DVSMinForEntry {
		return reject("dvs_too_low")
	}
	if eqs < con.EQSMinForEntry {
		return reject("eqs_too_low")
	}
	if risk.KillSwitchActive {
		return reject("kill_switch_active")
	}
	if intent.EntryType == types.EntryTypeMarket {
		return reject("no_market_entries")
	}
	if intent.Bracket.StopPrice.IsZero() || intent.Bracket.TargetPrice.IsZero() {
		return reject("bracket_required")
	}
	return allow()
}

// inNoTradeWindow reports whether nowLocal ("HH:MM") falls in
// [start, end) of any configured window, mirroring session_manager.py's
// half-open interval.
func inNoTradeWindow(nowLocal string, windows []types.NoTradeWindow) bool {
	for _, w := range windows {
		if nowLocal >= w.Start && nowLocal < w.End {
			return true
		}
	}
	return false
}
