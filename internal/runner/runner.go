// Package runner is the single-threaded per-bar tick loop wiring every
// other package into one cycle. Grounded on spec §4.13's six-step
// sequence directly and on the original's BotRunner contract surfaced by
// original_source/tools/replay_runner.py and
// original_source/tools/determinism_test.py: a runner constructed once
// from (contracts dir, db path, adapter, fill mode) whose run_once(bar,
// stream_id) is pure given its event log and persisted state — two
// runners fed the identical bar produce identical decisions. Overall
// construction/shutdown wiring idiom grounded on teacher's
// cmd/server/main.go (flag-parsed config, zap logger, signal.Notify
// graceful shutdown).
package runner

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/themirrorplatform/constitutional-trader/internal/belief"
	"github.com/themirrorplatform/constitutional-trader/internal/bias"
	"github.com/themirrorplatform/constitutional-trader/internal/constitution"
	"github.com/themirrorplatform/constitutional-trader/internal/contracts"
	"github.com/themirrorplatform/constitutional-trader/internal/eventstore"
	"github.com/themirrorplatform/constitutional-trader/internal/execution"
	"github.com/themirrorplatform/constitutional-trader/internal/metrics"
	"github.com/themirrorplatform/constitutional-trader/internal/permission"
	"github.com/themirrorplatform/constitutional-trader/internal/quality"
	"github.com/themirrorplatform/constitutional-trader/internal/selector"
	"github.com/themirrorplatform/constitutional-trader/internal/signals"
	"github.com/themirrorplatform/constitutional-trader/internal/state"
	"github.com/themirrorplatform/constitutional-trader/internal/statusapi"
	"github.com/themirrorplatform/constitutional-trader/internal/strategyrec"
	"github.com/themirrorplatform/constitutional-trader/internal/trademanager"
	"github.com/themirrorplatform/constitutional-trader/pkg/types"
	"github.com/themirrorplatform/constitutional-trader/pkg/utils"
)

// Config parameterises one Runner. BaseTheta is θ_base before the
// permission package's time/day/regime/conflict modifiers are applied;
// the spec leaves its numeric default to deployment configuration.
type Config struct {
	StreamID              string
	BaseTheta             float64
	ConfirmationThreshold float64
}

// Runner owns every mutable piece of per-bar state: the rolling signal
// window, the open trade (if any, at most one per spec's single-
// instrument scope), and the last computed DVS/EQS scores.
type Runner struct {
	logger     *zap.Logger
	events     *eventstore.Store
	stateStore *state.Store
	bundle     *contracts.Bundle
	supervisor *execution.Supervisor
	adapter    execution.Adapter
	metrics    *metrics.Registry
	status     *statusapi.Server
	window     *signals.Window
	cfg        Config

	openTrade     *types.Trade
	entryClientID string
	exitClientID  string
	dvsState      map[string]any
	eqsState      map[string]any
}

// New wires the components the teacher's cmd/server/main.go would build
// in sequence, but against this domain's components instead.
func New(
	logger *zap.Logger,
	events *eventstore.Store,
	stateStore *state.Store,
	bundle *contracts.Bundle,
	supervisor *execution.Supervisor,
	adapter execution.Adapter,
	metricsReg *metrics.Registry,
	status *statusapi.Server,
	cfg Config,
) *Runner {
	return &Runner{
		logger:     logger.Named("runner"),
		events:     events,
		stateStore: stateStore,
		bundle:     bundle,
		supervisor: supervisor,
		adapter:    adapter,
		metrics:    metricsReg,
		status:     status,
		window:     signals.NewWindow(bundle.Instrument.TickSize, bundle.Instrument.RoundLevels),
		cfg:        cfg,
		dvsState:   map[string]any{},
		eqsState:   map[string]any{},
	}
}

func (r *Runner) appendEvent(ctx context.Context, typ types.EventType, payload any, now time.Time) error {
	start := time.Now()
	ev := types.NewEvent(r.cfg.StreamID, now, typ, payload, r.bundle.ConfigHash)
	_, err := r.events.Append(ctx, ev)
	if r.metrics != nil {
		r.metrics.EventAppendLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("runner: append %s: %w", typ, err)
	}
	return nil
}

// Tick runs one bar through the full cycle: drain broker events, append
// the bar, refresh signals/quality/belief/bias/strategy/permission,
// emit a readiness snapshot, then manage an open trade or invoke the
// selector, run the constitutional filter and submit, and persist
// state. A bar that fails the sanity check is logged as rejected and
// ends the tick.
func (r *Runner) Tick(ctx context.Context, bar types.Bar, market types.MarketContext, brokerEvents []types.BrokerEvent, now time.Time) (types.Decision, error) {
	r.drainBrokerEvents(ctx, brokerEvents, now)

	if !bar.Sane() {
		if err := r.appendEvent(ctx, types.EventBarRejected, bar, now); err != nil {
			return types.Decision{}, err
		}
		return types.Decision{Outcome: types.DecisionNoTrade, Reason: "bar_rejected"}, nil
	}
	if err := r.appendEvent(ctx, types.EventBarAccepted, bar, now); err != nil {
		return types.Decision{}, err
	}
	if r.metrics != nil {
		r.metrics.BarsProcessed.Inc()
	}

	sig := r.window.Compute(bar)

	r.dvsState["dvs"] = r.lastDVS()
	dvs, _ := quality.ComputeDVS(r.dvsState, r.bundle.Data)
	r.dvsState["dvs"] = dvs

	r.eqsState["eqs"] = r.lastEQS()
	eqs, _ := quality.ComputeEQS(r.eqsState, r.bundle.Execution)
	r.eqsState["eqs"] = eqs

	prevBeliefs := r.stateStore.BeliefState()
	beliefs := belief.Update(sig, f64(bar.Close), prevBeliefs, r.bundle.Belief)
	r.stateStore.SetBeliefState(beliefs)

	biasState := bias.Compute(sig, beliefs, r.bundle.BiasRegistry)
	strategyState := strategyrec.Compute(sig, biasState, r.bundle.StrategyRegistry)
	perm := permission.Compute(biasState, strategyState, r.bundle.StrategyRegistry)
	theta, thetaMods := permission.EffectiveThreshold(r.cfg.BaseTheta, sig, now)

	risk := r.stateStore.RiskState(now)

	if r.status != nil {
		snap := r.status.Update(statusapi.Inputs{
			Market:          market,
			Risk:            risk,
			DVS:             dvs,
			EQS:             eqs,
			MinDataQuality:  r.bundle.Data.DVS.InitialValue,
			MinDVS:          r.bundle.Constitution.DVSMinForEntry,
			MinEQS:          r.bundle.Constitution.EQSMinForEntry,
			MaxHeartbeatAge: time.Duration(r.bundle.Constitution.TTLSeconds) * time.Second,
		})
		if !snap.Go {
			r.logger.Warn("not go", zap.Strings("reasons", snap.Reasons))
		}
	}

	if r.openTrade != nil {
		return r.tickOpenTrade(ctx, bar, sig, now)
	}

	decision := selector.Select(sig, beliefs, biasState, perm, r.bundle.Strategy, r.bundle.BiasRegistry, theta, thetaMods, r.cfg.ConfirmationThreshold)
	if err := r.appendEvent(ctx, types.EventDecisionRecord, decision, now); err != nil {
		return decision, err
	}
	if r.metrics != nil {
		r.metrics.DecisionsByOutcome.WithLabelValues(string(decision.Outcome)).Inc()
	}
	if err := r.stateStore.Save(); err != nil {
		return decision, fmt.Errorf("runner: save state: %w", err)
	}

	if decision.Outcome != types.DecisionTrade {
		return decision, nil
	}

	intent := r.buildIntent(decision, perm, bar, now)
	if err := r.appendEvent(ctx, types.EventOrderIntent, intent, now); err != nil {
		return decision, err
	}

	nowLocal := now.Format("15:04")
	verdict := constitution.Check(intent, risk, r.currentPosition(), nowLocal, dvs, eqs, r.bundle.Session, r.bundle.Risk, r.bundle.Constitution)
	if !verdict.Allow {
		if r.metrics != nil {
			r.metrics.GateRejections.WithLabelValues(verdict.Reason).Inc()
		}
		return decision, r.appendEvent(ctx, types.EventOrderIntentReject, map[string]any{"intent": intent, "reason": verdict.Reason}, now)
	}

	clientID := r.supervisor.ClientOrderID(intent, now)
	parent, err := r.supervisor.Submit(intent, clientID, r.adapter, now)
	if err != nil {
		return decision, r.appendEvent(ctx, types.EventOrderRejected, map[string]any{"client_id": clientID, "error": err.Error()}, now)
	}
	if parent.State == types.ParentRejected {
		return decision, r.appendEvent(ctx, types.EventOrderRejected, map[string]any{"client_id": clientID}, now)
	}

	// The two bracket legs must exist and be ACKED before any fill for
	// this parent can be folded in (spec §3 ParentOrder invariant (i),
	// P7); place them synchronously here, still within this single-
	// threaded tick, before the parent is recorded as an open trade.
	if err := r.supervisor.SubmitChildren(intent, clientID, r.adapter, now); err != nil {
		return decision, r.appendEvent(ctx, types.EventChildMissing, map[string]any{"client_id": clientID, "error": err.Error()}, now)
	}
	if err := r.appendEvent(ctx, types.EventChildOrderPlaced, parent, now); err != nil {
		return decision, err
	}

	r.entryClientID = clientID
	r.openTrade = &types.Trade{
		TradeID:        utils.GenerateTradeID(),
		EntryTemplate:  decision.TemplateID,
		State:          types.TradeEntryPending,
		Direction:      intent.Direction,
		Quantity:       intent.Quantity,
		EntryPrice:     intent.LimitPrice,
		StopPrice:      intent.Bracket.StopPrice,
		TargetPrice:    intent.Bracket.TargetPrice,
		MaxTimeMinutes: defaultMaxTimeMinutes,
	}
	r.stateStore.RecordEntry(now)
	if err := r.appendEvent(ctx, types.EventOrderSubmitted, parent, now); err != nil {
		return decision, err
	}

	if err := r.stateStore.Save(); err != nil {
		return decision, fmt.Errorf("runner: save state: %w", err)
	}
	return decision, nil
}

// defaultMaxTimeMinutes is the time limit every trade opened by Tick
// gets; strategy templates carry no time limit of their own.
const defaultMaxTimeMinutes = 60

func (r *Runner) tickOpenTrade(ctx context.Context, bar types.Bar, sig types.SignalVector, now time.Time) (types.Decision, error) {
	trade := r.openTrade
	result := trademanager.Tick(trade, now, bar.Close, sig)
	if result.Action == trademanager.ActionExit && trade.State != types.TradeClosing {
		trade.State = types.TradeClosing
		exitDir := types.DirectionShort
		if trade.Direction == types.DirectionShort {
			exitDir = types.DirectionLong
		}
		exitIntent := types.OrderIntent{
			Direction:  exitDir,
			Quantity:   trade.Quantity,
			EntryType:  types.EntryTypeLimit,
			LimitPrice: bar.Close,
			CreatedAt:  now,
		}
		r.exitClientID = r.supervisor.ClientOrderID(exitIntent, now)
		if _, err := r.supervisor.Submit(exitIntent, r.exitClientID, r.adapter, now); err != nil {
			r.logger.Error("exit submit failed", zap.Error(err))
		}
		if err := r.appendEvent(ctx, types.EventOrderSubmitted, exitIntent, now); err != nil {
			return types.Decision{}, err
		}
	}
	noTrade := types.Decision{Outcome: types.DecisionNoTrade, Reason: "trade_open", ReasonVector: map[string]any{"trade_state": trade.State}}
	return noTrade, r.stateStore.Save()
}

func (r *Runner) drainBrokerEvents(ctx context.Context, evs []types.BrokerEvent, now time.Time) {
	for _, ev := range evs {
		childMissing := r.supervisor.OnBrokerEvent(ev, now)
		if childMissing {
			if err := r.appendEvent(ctx, types.EventChildMissing, ev, now); err != nil {
				r.logger.Error("append child-missing event", zap.Error(err))
			}
			continue
		}
		switch ev.Type {
		case types.BrokerEventFill:
			r.onFillEvent(ctx, ev, now)
		}
		if err := r.appendEvent(ctx, eventTypeForBrokerEvent(ev.Type), ev, now); err != nil {
			r.logger.Error("append broker event", zap.Error(err))
		}
	}
}

func (r *Runner) onFillEvent(ctx context.Context, ev types.BrokerEvent, now time.Time) {
	switch {
	case r.openTrade != nil && ev.ClientID == r.entryClientID && r.openTrade.State == types.TradeEntryPending:
		trademanager.OnFill(r.openTrade, ev.FilledQty, ev.FillPrice, now)
		if err := r.appendEvent(ctx, types.EventTradeOpened, r.openTrade, now); err != nil {
			r.logger.Error("append trade-opened event", zap.Error(err))
		}
	case r.openTrade != nil && ev.ClientID == r.exitClientID:
		trademanager.OnExitFilled(r.openTrade, ev.FillPrice, now, r.bundle.Instrument)
		r.stateStore.RecordExit(r.openTrade.RealizedPnL)
		if err := r.appendEvent(ctx, types.EventTradeClosed, r.openTrade, now); err != nil {
			r.logger.Error("append trade-closed event", zap.Error(err))
		}
		if r.metrics != nil {
			r.metrics.TradesClosed.WithLabelValues(r.openTrade.EntryTemplate).Inc()
		}
		r.openTrade = nil
		r.entryClientID = ""
		r.exitClientID = ""
	}
}

func eventTypeForBrokerEvent(t types.BrokerEventType) types.EventType {
	switch t {
	case types.BrokerEventFill:
		return types.EventFill
	case types.BrokerEventPartialFill:
		return types.EventPartialFill
	case types.BrokerEventOrderAck:
		return types.EventOrderAcked
	case types.BrokerEventCancelAck:
		return types.EventCancelAck
	default:
		return types.EventReconcileDiff
	}
}

// buildIntent turns a TRADE decision plus its chosen template into a
// bracketed LIMIT entry. Quantity is sized off the permission layer's
// max_risk_units (a 0.5-1.0 fraction of one contract's worth of risk),
// rounded to the nearest whole contract and floored at 1 — the spec
// names max_risk_units but leaves the units-to-contracts mapping to
// deployment; this is the simplest defensible reading absent a
// portfolio-level sizing model, which is explicitly out of scope.
func (r *Runner) buildIntent(d types.Decision, perm types.Permission, bar types.Bar, now time.Time) types.OrderIntent {
	tpl := r.bundle.Strategy.TemplatesByID[d.TemplateID]
	direction := types.Direction(tpl.Direction)
	tick := r.bundle.Instrument.TickSize

	qty := int(math.Round(perm.MaxRiskUnits))
	if qty < 1 {
		qty = 1
	}

	var stop, target decimal.Decimal
	stopOffset := tick.Mul(decimal.NewFromInt(int64(tpl.StopTicks)))
	targetOffset := tick.Mul(decimal.NewFromInt(int64(tpl.TargetTicks)))
	if direction == types.DirectionLong {
		stop = bar.Close.Sub(stopOffset)
		target = bar.Close.Add(targetOffset)
	} else {
		stop = bar.Close.Add(stopOffset)
		target = bar.Close.Sub(targetOffset)
	}
	entryPrice := utils.RoundToTickSize(bar.Close, tick)
	stop = utils.RoundToTickSize(stop, tick)
	target = utils.RoundToTickSize(target, tick)

	return types.OrderIntent{
		Direction:  direction,
		Quantity:   qty,
		EntryType:  types.EntryTypeLimit,
		LimitPrice: entryPrice,
		Bracket:    types.Bracket{StopPrice: stop, TargetPrice: target},
		TemplateID: d.TemplateID,
		ReasonVector: map[string]any{
			"score": d.Score,
			"theta": d.Theta,
		},
		CreatedAt: now,
	}
}

func (r *Runner) currentPosition() int {
	if r.openTrade == nil {
		return 0
	}
	return r.openTrade.Quantity
}

func (r *Runner) lastDVS() float64 {
	if v, ok := r.dvsState["dvs"].(float64); ok {
		return v
	}
	return r.bundle.Data.DVS.InitialValue
}

func (r *Runner) lastEQS() float64 {
	if v, ok := r.eqsState["eqs"].(float64); ok {
		return v
	}
	return r.bundle.Execution.EQS.InitialValue
}

func f64(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}
