// Package state is the volatile RiskState holder plus its JSON
// persistence journal. Day-rollover semantics grounded word-for-word on
// original_source/core/state_store.py's StateStore
// (get_risk_state/record_entry/record_exit/set_kill_switch); the JSON
// schema and load/save shape grounded on
// original_source/state/persistence.py's PersistentStateStore.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

// Store holds the live RiskState and belief-state blob in memory and
// mirrors them to a JSON journal on disk, mutex-guarded like teacher's
// internal/data.Store.
type Store struct {
	mu     sync.RWMutex
	logger *zap.Logger
	path   string

	risk    types.RiskState
	beliefs types.BeliefState
	loaded  bool
}

// New returns a Store backed by path; the journal is created lazily on
// first Save.
func New(logger *zap.Logger, path string) *Store {
	return &Store{logger: logger.Named("state-store"), path: path}
}

// journalDoc is the on-disk JSON shape: two top-level members,
// risk_state and belief_state, matching persistence.py's payload.
type journalDoc struct {
	RiskState struct {
		KillSwitchActive  bool   `json:"kill_switch_active"`
		DailyPnL          string `json:"daily_pnl"`
		ConsecutiveLosses int    `json:"consecutive_losses"`
		TradesToday       int    `json:"trades_today"`
		LastEntryTime     string `json:"last_entry_time,omitempty"`
		CurrentDay        string `json:"current_day,omitempty"`
	} `json:"risk_state"`
	BeliefState types.BeliefState `json:"belief_state"`
}

// Load reads the journal from disk, tolerating a missing file (first
// run). Call once before the runner's first tick.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("state: read journal: %w", err)
	}

	var doc journalDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("state: parse journal: %w", err)
	}

	pnl, err := decimal.NewFromString(zeroIfEmpty(doc.RiskState.DailyPnL))
	if err != nil {
		return fmt.Errorf("state: parse daily_pnl: %w", err)
	}
	s.risk = types.RiskState{
		KillSwitchActive:  doc.RiskState.KillSwitchActive,
		DailyPnL:          pnl,
		ConsecutiveLosses: doc.RiskState.ConsecutiveLosses,
		TradesToday:       doc.RiskState.TradesToday,
		CurrentDay:        doc.RiskState.CurrentDay,
	}
	if doc.RiskState.LastEntryTime != "" {
		t, err := time.Parse(time.RFC3339, doc.RiskState.LastEntryTime)
		if err == nil {
			s.risk.LastEntryTime = &t
		}
	}
	s.beliefs = doc.BeliefState
	s.loaded = true
	return nil
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// Save writes the current risk/belief state to the journal, creating
// its parent directory if needed.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc journalDoc
	doc.RiskState.KillSwitchActive = s.risk.KillSwitchActive
	doc.RiskState.DailyPnL = s.risk.DailyPnL.String()
	doc.RiskState.ConsecutiveLosses = s.risk.ConsecutiveLosses
	doc.RiskState.TradesToday = s.risk.TradesToday
	doc.RiskState.CurrentDay = s.risk.CurrentDay
	if s.risk.LastEntryTime != nil {
		doc.RiskState.LastEntryTime = s.risk.LastEntryTime.Format(time.RFC3339)
	}
	doc.BeliefState = s.beliefs

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("state: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal journal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("state: write journal: %w", err)
	}
	return nil
}

// RiskState returns the current risk state after applying a local-day
// rollover if now falls on a new exchange-local day: trades_today and
// consecutive_losses reset to zero and daily_pnl to zero, but
// kill_switch_active persists across the boundary.
func (s *Store) RiskState(now time.Time) types.RiskState {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := now.Format("2006-01-02")
	if s.risk.CurrentDay == "" {
		s.risk.CurrentDay = day
	} else if s.risk.CurrentDay != day {
		s.risk.CurrentDay = day
		s.risk.TradesToday = 0
		s.risk.ConsecutiveLosses = 0
		s.risk.DailyPnL = decimal.Zero
	}
	return s.risk
}

// RecordEntry increments trades_today and stamps last_entry_time.
func (s *Store) RecordEntry(entryTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.risk.TradesToday++
	s.risk.LastEntryTime = &entryTime
}

// RecordExit folds a realized PnL into daily_pnl and updates the
// consecutive-loss counter: any loss (pnl < 0) increments it, any
// non-loss resets it to zero.
func (s *Store) RecordExit(pnl decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.risk.DailyPnL = s.risk.DailyPnL.Add(pnl)
	if pnl.IsNegative() {
		s.risk.ConsecutiveLosses++
	} else {
		s.risk.ConsecutiveLosses = 0
	}
}

// SetKillSwitch arms or disarms the kill switch.
func (s *Store) SetKillSwitch(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.risk.KillSwitchActive = active
}

// ResetSession clears last_entry_time and consecutive_losses (an
// intraday reset, distinct from the day-boundary rollover) while
// leaving daily_pnl and trades_today untouched.
func (s *Store) ResetSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.risk.LastEntryTime = nil
	s.risk.ConsecutiveLosses = 0
}

// BeliefState returns the last-persisted belief state, for warm-starting
// the belief engine across restarts.
func (s *Store) BeliefState() types.BeliefState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.beliefs
}

// SetBeliefState stashes the belief engine's latest output for the next
// Save.
func (s *Store) SetBeliefState(b types.BeliefState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beliefs = b
}
