package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(zap.NewNop(), filepath.Join(t.TempDir(), "state.json"))
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRiskStateInitializesCurrentDay(t *testing.T) {
	s := newStore(t)
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	rs := s.RiskState(now)
	if rs.CurrentDay != "2026-07-30" {
		t.Errorf("expected current day stamped, got %q", rs.CurrentDay)
	}
}

func TestRiskStateRollsOverOnNewDay(t *testing.T) {
	s := newStore(t)
	day1 := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	s.RiskState(day1)
	s.RecordEntry(day1)
	s.RecordExit(decimal.NewFromInt(-10))
	if s.RiskState(day1).TradesToday != 1 {
		t.Fatal("expected trade recorded same day")
	}

	day2 := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	rs := s.RiskState(day2)
	if rs.TradesToday != 0 || rs.ConsecutiveLosses != 0 || !rs.DailyPnL.IsZero() {
		t.Errorf("expected day-boundary rollover, got %+v", rs)
	}
}

func TestKillSwitchSurvivesDayRollover(t *testing.T) {
	s := newStore(t)
	day1 := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	s.RiskState(day1)
	s.SetKillSwitch(true)

	day2 := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	rs := s.RiskState(day2)
	if !rs.KillSwitchActive {
		t.Error("expected kill switch to persist across day boundary")
	}
}

func TestRecordExitTracksConsecutiveLosses(t *testing.T) {
	s := newStore(t)
	now := time.Now()
	s.RiskState(now)
	s.RecordExit(decimal.NewFromInt(-5))
	s.RecordExit(decimal.NewFromInt(-5))
	if s.RiskState(now).ConsecutiveLosses != 2 {
		t.Fatal("expected two consecutive losses")
	}
	s.RecordExit(decimal.NewFromInt(10))
	if s.RiskState(now).ConsecutiveLosses != 0 {
		t.Error("expected consecutive losses reset on a win")
	}
}

func TestResetSessionKeepsDailyPnLAndTrades(t *testing.T) {
	s := newStore(t)
	now := time.Now()
	s.RiskState(now)
	s.RecordEntry(now)
	s.RecordExit(decimal.NewFromInt(-5))
	s.ResetSession()
	rs := s.RiskState(now)
	if rs.ConsecutiveLosses != 0 {
		t.Error("expected consecutive losses cleared by ResetSession")
	}
	if rs.TradesToday != 1 || rs.DailyPnL.IsZero() {
		t.Error("expected trades_today and daily_pnl preserved by ResetSession")
	}
	if rs.LastEntryTime != nil {
		t.Error("expected last_entry_time cleared")
	}
}

func TestSaveLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s1 := New(zap.NewNop(), path)
	if err := s1.Load(); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	s1.RiskState(now)
	s1.RecordEntry(now)
	s1.RecordExit(decimal.NewFromInt(-12))
	s1.SetKillSwitch(true)
	s1.SetBeliefState(types.BeliefState{Belief: map[string]float64{"F1": 0.42}})
	if err := s1.Save(); err != nil {
		t.Fatal(err)
	}

	s2 := New(zap.NewNop(), path)
	if err := s2.Load(); err != nil {
		t.Fatal(err)
	}
	rs := s2.RiskState(now)
	if !rs.KillSwitchActive || rs.TradesToday != 1 || rs.ConsecutiveLosses != 1 {
		t.Errorf("expected round-tripped risk state, got %+v", rs)
	}
	if !rs.DailyPnL.Equal(decimal.NewFromInt(-12)) {
		t.Errorf("expected daily_pnl -12, got %s", rs.DailyPnL)
	}
	if s2.BeliefState().Belief["F1"] != 0.42 {
		t.Error("expected belief state round-tripped")
	}
}
