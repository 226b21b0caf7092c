package trademanager

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

func instrument() types.MarketInstrumentContract {
	return types.MarketInstrumentContract{
		TickSize:  decimal.NewFromFloat(0.25),
		TickValue: decimal.NewFromFloat(1.25),
	}
}

func filledTrade(template string, direction types.Direction, filledAt time.Time) *types.Trade {
	return &types.Trade{
		State:          types.TradeFilled,
		EntryTemplate:  template,
		Direction:      direction,
		Quantity:       1,
		FilledPrice:    decimal.NewFromInt(5000),
		FilledTime:     filledAt,
		MaxTimeMinutes: 30,
	}
}

func TestTickHoldsBeforeTimeLimitAndNoInvalidation(t *testing.T) {
	now := time.Now()
	trade := filledTrade("K1", types.DirectionLong, now.Add(-5*time.Minute))
	res := Tick(trade, now, decimal.NewFromInt(5010), types.SignalVector{Values: map[string]float64{"vwap_z": -1.0}})
	if res.Action != ActionHold {
		t.Fatalf("expected HOLD, got %s (%s)", res.Action, res.Reason)
	}
	if trade.State != types.TradeManaging {
		t.Errorf("expected MANAGING, got %s", trade.State)
	}
}

func TestTickExitsOnTimeLimitExceeded(t *testing.T) {
	now := time.Now()
	trade := filledTrade("K1", types.DirectionLong, now.Add(-31*time.Minute))
	res := Tick(trade, now, decimal.NewFromInt(5010), types.SignalVector{})
	if res.Action != ActionExit {
		t.Fatal("expected EXIT on time limit")
	}
	if trade.State != types.TradeExitTriggered {
		t.Errorf("expected EXIT_TRIGGERED, got %s", trade.State)
	}
}

func TestK1ExitsOnVWAPReversalLong(t *testing.T) {
	now := time.Now()
	trade := filledTrade("K1", types.DirectionLong, now.Add(-5*time.Minute))
	res := Tick(trade, now, decimal.NewFromInt(5010), types.SignalVector{Values: map[string]float64{"vwap_z": 0.6}})
	if res.Action != ActionExit || !trade.ThesisInvalidated {
		t.Fatalf("expected thesis invalidation exit, got %+v", res)
	}
}

func TestK2ExitsOnRangeRecompression(t *testing.T) {
	now := time.Now()
	trade := filledTrade("K2", types.DirectionLong, now.Add(-5*time.Minute))
	res := Tick(trade, now, decimal.NewFromInt(5010), types.SignalVector{Values: map[string]float64{"range_compression": 0.9}})
	if res.Action != ActionExit {
		t.Fatal("expected exit on range recompression")
	}
}

func TestK2HoldsOnGenuineZeroRangeCompression(t *testing.T) {
	now := time.Now()
	trade := filledTrade("K2", types.DirectionLong, now.Add(-5*time.Minute))
	res := Tick(trade, now, decimal.NewFromInt(5010), types.SignalVector{Values: map[string]float64{"range_compression": 0}})
	if res.Action == ActionExit {
		t.Fatal("a genuine zero range_compression reading (full compression) must not force an exit")
	}
}

func TestK4ExitsOnTrendReversal(t *testing.T) {
	now := time.Now()
	trade := filledTrade("K4", types.DirectionShort, now.Add(-5*time.Minute))
	res := Tick(trade, now, decimal.NewFromInt(5010), types.SignalVector{Values: map[string]float64{"hhll_trend_strength": 0.6}})
	if res.Action != ActionExit {
		t.Fatal("expected exit on trend reversal")
	}
}

func TestOnExitFilledComputesTickValuePnLLong(t *testing.T) {
	trade := filledTrade("K1", types.DirectionLong, time.Now())
	OnExitFilled(trade, decimal.NewFromInt(5005), time.Now(), instrument())
	// (5005-5000)/0.25 = 20 ticks * 1.25 = 25
	if !trade.RealizedPnL.Equal(decimal.NewFromFloat(25)) {
		t.Errorf("expected pnl 25, got %s", trade.RealizedPnL)
	}
	if trade.State != types.TradeClosed {
		t.Errorf("expected CLOSED, got %s", trade.State)
	}
}

func TestOnExitFilledComputesTickValuePnLShort(t *testing.T) {
	trade := filledTrade("K1", types.DirectionShort, time.Now())
	OnExitFilled(trade, decimal.NewFromInt(4995), time.Now(), instrument())
	// (5000-4995)/0.25 = 20 ticks * 1.25 = 25
	if !trade.RealizedPnL.Equal(decimal.NewFromFloat(25)) {
		t.Errorf("expected pnl 25, got %s", trade.RealizedPnL)
	}
}

func TestIgnoresTickWhenNotFilledOrManaging(t *testing.T) {
	trade := &types.Trade{State: types.TradeEntryPending}
	res := Tick(trade, time.Now(), decimal.NewFromInt(5000), types.SignalVector{})
	if res.Action != ActionHold {
		t.Errorf("expected HOLD for non-active state, got %s", res.Action)
	}
}
