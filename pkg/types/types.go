// Package types provides the shared domain types for the trading engine:
// bars, signals, beliefs, biases, strategies, permissions, orders, trades
// and risk state. All money and price fields use fixed-point decimals;
// normalised scores (signals, beliefs, probabilities) use float64.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is a trade or order direction.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// EntryType is the order type used to open a position. MARKET entries
// are forbidden by the constitutional filter (spec §4.9: no_market_entries).
type EntryType string

const (
	EntryTypeLimit     EntryType = "LIMIT"
	EntryTypeStopLimit EntryType = "STOP_LIMIT"
	EntryTypeMarket    EntryType = "MARKET"
)

// ChildType identifies a bracket leg.
type ChildType string

const (
	ChildTypeStop   ChildType = "STOP"
	ChildTypeTarget ChildType = "TARGET"
)

// ParentState is the execution supervisor's state machine for a parent order.
type ParentState string

const (
	ParentCreated    ParentState = "CREATED"
	ParentSubmitting ParentState = "SUBMITTING"
	ParentAcked      ParentState = "ACKED"
	ParentPartial    ParentState = "PARTIAL"
	ParentFilled     ParentState = "FILLED"
	ParentCanceled   ParentState = "CANCELED"
	ParentRejected   ParentState = "REJECTED"
	ParentError      ParentState = "ERROR"
	ParentDone       ParentState = "DONE"
)

// TradeState is the trade lifecycle manager's state machine.
type TradeState string

const (
	TradeEntryPending  TradeState = "ENTRY_PENDING"
	TradeFilled        TradeState = "FILLED"
	TradeManaging      TradeState = "MANAGING"
	TradeExitTriggered TradeState = "EXIT_TRIGGERED"
	TradeClosing       TradeState = "CLOSING"
	TradeClosed        TradeState = "CLOSED"
	TradeError         TradeState = "ERROR"
)

// Posture is a strategy's recommended stance given current bias/strategy state.
type Posture string

const (
	PostureAlign     Posture = "ALIGN"
	PostureFade      Posture = "FADE"
	PostureStandDown Posture = "STAND_DOWN"
)

// RegimeVol, RegimeTrend, RegimeLiquidity are the three independent regime axes.
type RegimeVol string
type RegimeTrend string
type RegimeLiquidity string

const (
	VolRegimeLow    RegimeVol = "LOW"
	VolRegimeNormal RegimeVol = "NORMAL"
	VolRegimeHigh   RegimeVol = "HIGH"

	TrendRegimeTrending RegimeTrend = "TRENDING"
	TrendRegimeRanging  RegimeTrend = "RANGING"
	TrendRegimeMixed    RegimeTrend = "MIXED"

	LiquidityRegimeThin   RegimeLiquidity = "THIN"
	LiquidityRegimeNormal RegimeLiquidity = "NORMAL"
	LiquidityRegimeActive RegimeLiquidity = "ACTIVE"
)

// Bar is a closed one-minute OHLCV observation.
type Bar struct {
	Timestamp time.Time        `json:"ts"`
	Symbol    string           `json:"symbol"`
	Open      decimal.Decimal  `json:"open"`
	High      decimal.Decimal  `json:"high"`
	Low       decimal.Decimal  `json:"low"`
	Close     decimal.Decimal  `json:"close"`
	Volume    decimal.Decimal  `json:"volume"`
	Bid       *decimal.Decimal `json:"bid,omitempty"`
	Ask       *decimal.Decimal `json:"ask,omitempty"`
}

// Sane reports whether the bar passes basic sanity: non-negative volume
// and high >= max(open,close) >= min(open,close) >= low.
func (b Bar) Sane() bool {
	if b.Volume.IsNegative() {
		return false
	}
	hi := decimal.Max(b.Open, b.Close)
	lo := decimal.Min(b.Open, b.Close)
	return b.High.GreaterThanOrEqual(hi) && hi.GreaterThanOrEqual(lo) && lo.GreaterThanOrEqual(b.Low)
}

// SignalVector maps signal id to a normalised real number plus a warmup flag.
type SignalVector struct {
	Values map[string]float64 `json:"values"`
	Warmup bool                `json:"warmup"`
}

// Get returns the value for id, or 0 if absent.
func (s SignalVector) Get(id string) float64 {
	if s.Values == nil {
		return 0
	}
	return s.Values[id]
}

// BeliefState holds per-constraint beliefs, stability, and scratch carry-forward.
type BeliefState struct {
	Belief         map[string]float64 `json:"belief"`
	Stability      map[string]float64 `json:"stability"`
	PrevPrice      float64            `json:"prev_price"`
	TopConstraints []string           `json:"top_constraints"`
}

// CloneBeliefState returns an independent copy so components never mutate
// the caller's prior state (spec §3 Ownership: components return next state).
func CloneBeliefState(s BeliefState) BeliefState {
	out := BeliefState{
		Belief:    make(map[string]float64, len(s.Belief)),
		Stability: make(map[string]float64, len(s.Stability)),
		PrevPrice: s.PrevPrice,
	}
	for k, v := range s.Belief {
		out.Belief[k] = v
	}
	for k, v := range s.Stability {
		out.Stability[k] = v
	}
	out.TopConstraints = append([]string(nil), s.TopConstraints...)
	return out
}

// ActiveBias is one currently-active bias with its scores.
type ActiveBias struct {
	BiasID     string     `json:"bias_id"`
	Strength   float64    `json:"strength"`
	Confidence float64    `json:"confidence"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// BiasConflict is a pair of active, mutually conflicting biases.
type BiasConflict struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Severity float64 `json:"severity"`
}

// Regime is the regime triple computed by the bias engine.
type Regime struct {
	Vol       RegimeVol       `json:"vol_regime"`
	Trend     RegimeTrend     `json:"trend_regime"`
	Liquidity RegimeLiquidity `json:"liquidity_regime"`
}

// BiasState is the bias engine's per-bar output.
type BiasState struct {
	Active    []ActiveBias   `json:"active"`
	Regime    Regime         `json:"regime"`
	Conflicts []BiasConflict `json:"conflicts"`
}

// ActiveBiasIDs returns just the ids of active biases.
func (s BiasState) ActiveBiasIDs() []string {
	out := make([]string, len(s.Active))
	for i, a := range s.Active {
		out[i] = a.BiasID
	}
	return out
}

// ActiveStrategy is one currently-considered strategy with probability/posture.
type ActiveStrategy struct {
	StrategyID  string  `json:"strategy_id"`
	Probability float64 `json:"probability"`
	Posture     Posture `json:"posture"`
}

// Dominance is a ranked dominant-strategy entry.
type Dominance struct {
	StrategyID     string  `json:"strategy_id"`
	DominanceScore float64 `json:"dominance_score"`
}

// Trap is a ranked trap (likely-to-fail strategy) entry.
type Trap struct {
	StrategyID string  `json:"strategy_id"`
	TrapScore  float64 `json:"trap_score"`
}

// StrategyState is the strategy recognizer's per-bar output.
type StrategyState struct {
	Active    []ActiveStrategy `json:"active"`
	Dominance []Dominance      `json:"dominance"`
	Traps     []Trap           `json:"traps"`
}

// Permission is the permission layer's verdict gating whether any trade
// may be considered on this bar.
type Permission struct {
	AllowTrade           bool        `json:"allow_trade"`
	AllowedDirections    []Direction `json:"allowed_directions"`
	AllowedPlaybooks     []string    `json:"allowed_playbooks"`
	MaxRiskUnits         float64     `json:"max_risk_units"`
	RequiredConfirmation []string    `json:"required_confirmation"`
	StandDownReason      string      `json:"stand_down_reason"`
}

// DecisionOutcome is the strategy selector's TRADE/NO_TRADE verdict.
type DecisionOutcome string

const (
	DecisionTrade   DecisionOutcome = "TRADE"
	DecisionNoTrade DecisionOutcome = "NO_TRADE"
)

// Decision is the strategy selector's per-bar output: the chosen
// template (if any), its score against θ_effective, and — on NO_TRADE —
// the enumerated reason. Carried onto a DECISION_RECORD event.
type Decision struct {
	Outcome        DecisionOutcome `json:"outcome"`
	TemplateID     string          `json:"template_id,omitempty"`
	Score          float64         `json:"score"`
	Theta          float64         `json:"theta"`
	ThetaModifiers map[string]float64 `json:"theta_modifiers,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	ReasonVector   map[string]any  `json:"reason_vector"`
}

// Bracket is the stop/target pair attached to an entry.
type Bracket struct {
	StopPrice   decimal.Decimal `json:"stop_price"`
	TargetPrice decimal.Decimal `json:"target_price"`
}

// OrderIntent is the strategy selector's output: a proposed entry, before
// the constitutional filter has run.
type OrderIntent struct {
	IntentID     string          `json:"intent_id"`
	Direction    Direction       `json:"direction"`
	Quantity     int             `json:"quantity"`
	EntryType    EntryType       `json:"entry_type"`
	LimitPrice   decimal.Decimal `json:"limit_price"`
	StopPrice    decimal.Decimal `json:"stop_price,omitempty"`
	Bracket      Bracket         `json:"bracket"`
	TemplateID   string          `json:"template_id"`
	ReasonVector map[string]any  `json:"reason_vector"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ChildOrder is one bracket leg of a parent order.
type ChildOrder struct {
	ChildType  ChildType       `json:"child_type"`
	BrokerID   string          `json:"broker_id"`
	Status     ParentState     `json:"status"`
	StopPrice  decimal.Decimal `json:"stop_price,omitempty"`
	LimitPrice decimal.Decimal `json:"limit_price,omitempty"`
}

// ParentOrder is the execution supervisor's tracked order, keyed by an
// idempotent client id.
type ParentOrder struct {
	ClientID     string                    `json:"client_id"`
	BrokerID     string                    `json:"broker_id"`
	State        ParentState               `json:"state"`
	Direction    Direction                 `json:"direction"`
	Quantity     int                       `json:"quantity"`
	EntryPrice   decimal.Decimal           `json:"entry_price"`
	FilledQty    int                       `json:"filled_qty"`
	AvgFillPrice decimal.Decimal           `json:"avg_fill_price"`
	Children     map[ChildType]*ChildOrder `json:"children"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
	Metadata     map[string]any            `json:"metadata,omitempty"`
}

// Trade is bound to exactly one parent order and tracks the position
// through exit.
type Trade struct {
	TradeID            string          `json:"trade_id"`
	EntryTemplate      string          `json:"entry_template"`
	State              TradeState      `json:"state"`
	Direction          Direction       `json:"direction"`
	Quantity           int             `json:"quantity"`
	EntryPrice         decimal.Decimal `json:"entry_price"`
	EntryTime          time.Time       `json:"entry_time"`
	StopPrice          decimal.Decimal `json:"stop_price"`
	TargetPrice        decimal.Decimal `json:"target_price"`
	InitialRiskUSD     decimal.Decimal `json:"initial_risk_usd"`
	FilledQty          int             `json:"filled_qty"`
	FilledPrice        decimal.Decimal `json:"filled_price"`
	FilledTime         time.Time       `json:"filled_time"`
	ThesisInvalidated  bool            `json:"thesis_invalidated"`
	InvalidationReason string          `json:"invalidation_reason"`
	MaxTimeMinutes     int             `json:"max_time_minutes"`
	ExitTime           time.Time       `json:"exit_time"`
	ExitPrice          decimal.Decimal `json:"exit_price"`
	RealizedPnL        decimal.Decimal `json:"realized_pnl"`
}

// RiskState is the volatile/persistent risk counters tied to the
// exchange-local day boundary.
type RiskState struct {
	KillSwitchActive  bool            `json:"kill_switch_active"`
	DailyPnL          decimal.Decimal `json:"daily_pnl"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	TradesToday       int             `json:"trades_today"`
	LastEntryTime     *time.Time      `json:"last_entry_time"`
	CurrentDay        string          `json:"current_day"`
}

// MarketContext is the fully-shaped snapshot the broker adapter must
// always return; absent fields are explicit zero values, never omitted.
type MarketContext struct {
	Connected       bool            `json:"connected"`
	DataQuality     float64         `json:"data_quality"`
	DTE             int             `json:"dte"`
	SessionOpen     bool            `json:"session_open"`
	NowLocal        time.Time       `json:"now_local"`
	PrimaryContract string          `json:"primary_contract"`
	Equity          decimal.Decimal `json:"equity"`
}

// BrokerEventType enumerates the normalised events a broker adapter emits.
type BrokerEventType string

const (
	BrokerEventFill           BrokerEventType = "FILL"
	BrokerEventPartialFill    BrokerEventType = "PARTIAL_FILL"
	BrokerEventOrderAck       BrokerEventType = "ORDER_ACK"
	BrokerEventOrderReject    BrokerEventType = "ORDER_REJECT"
	BrokerEventCancelAck      BrokerEventType = "CANCEL_ACK"
	BrokerEventCancelReject   BrokerEventType = "CANCEL_REJECT"
	BrokerEventConnectionUp   BrokerEventType = "CONNECTION_UP"
	BrokerEventConnectionDown BrokerEventType = "CONNECTION_DOWN"
)

// BrokerEvent carries the normalised fields any of the above event types need.
type BrokerEvent struct {
	Type      BrokerEventType `json:"type"`
	ClientID  string          `json:"client_id"`
	BrokerID  string          `json:"broker_id"`
	FilledQty int             `json:"filled_qty,omitempty"`
	FillPrice decimal.Decimal `json:"fill_price,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
