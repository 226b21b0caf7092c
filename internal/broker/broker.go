// Package broker provides the BrokerAdapter interface the execution
// supervisor drives, a factory resolving it by kind, and an in-process
// deterministic SimAdapter used for replay/determinism tests. Grounded
// on original_source/core/adapter_factory.py's create_adapter
// (tradovate and ninjatrader both first-class, selected by a factory
// function) — spec §6 leaves both named kinds adapter-agnostic, so only
// the simulated path is implemented here; real wire protocols are out
// of scope per the spec's own "broker connectivity... treated as an
// adapter" exclusion.
package broker

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

// Kind identifies a configured adapter implementation.
type Kind string

const (
	KindTradovateSim Kind = "tradovate-sim"
	KindNinjaTrader  Kind = "ninjatrader"
	KindSim          Kind = "sim"
)

// Config parameterises NewAdapter; unused fields for a given kind are
// ignored, mirroring the original factory's kwargs grab-bag.
type Config struct {
	Kind     Kind
	FillMode string
}

// NewAdapter resolves kind to a concrete BrokerAdapter. "tradovate",
// "tv", "sim", "tradovate-sim" and the empty kind all route to the
// in-process SimAdapter; "ninjatrader"/"nt"/"bridge" are recognised but
// return an error since no wire bridge is implemented.
func NewAdapter(cfg Config) (Adapter, error) {
	n := strings.ToLower(strings.TrimSpace(string(cfg.Kind)))
	switch n {
	case "", "tradovate", "tv", "sim", "tradovate-sim":
		return NewSimAdapter(cfg), nil
	case "ninjatrader", "nt", "bridge":
		return nil, fmt.Errorf("broker: %s adapter has no wire implementation in this build", n)
	default:
		return nil, fmt.Errorf("broker: unknown adapter kind %q", cfg.Kind)
	}
}

// Adapter is the minimal broker surface the execution supervisor
// drives, matching internal/execution.Adapter.
type Adapter interface {
	PlaceOrder(intent types.OrderIntent, clientID string) (brokerID string, err error)
	CancelOrder(clientID string) error
	FlattenAll() error
}

// SimAdapter accepts every order and, through SimulateFill, fills it
// deterministically at its limit price, for replay/backtest use. It
// keeps no market quote, so an order without a limit price (a market
// order) fills at a zero price. Broker ids are content-derived so the same
// client id always maps to the same simulated broker id.
type SimAdapter struct {
	fillMode string
	orders   map[string]types.OrderIntent
}

// NewSimAdapter returns a SimAdapter configured by cfg.FillMode
// ("IMMEDIATE" is the only mode implemented, matching the original's
// default).
func NewSimAdapter(cfg Config) *SimAdapter {
	mode := cfg.FillMode
	if mode == "" {
		mode = "IMMEDIATE"
	}
	return &SimAdapter{fillMode: mode, orders: make(map[string]types.OrderIntent)}
}

// PlaceOrder always accepts, returning a deterministic broker id
// derived from the client id.
func (s *SimAdapter) PlaceOrder(intent types.OrderIntent, clientID string) (string, error) {
	s.orders[clientID] = intent
	return "sim-" + uuid.NewSHA1(uuid.Nil, []byte(clientID)).String(), nil
}

// CancelOrder removes the tracked order; canceling an unknown id is a
// no-op, mirroring a broker that already dropped it.
func (s *SimAdapter) CancelOrder(clientID string) error {
	delete(s.orders, clientID)
	return nil
}

// FlattenAll clears every tracked order; the sim has no real position
// to unwind.
func (s *SimAdapter) FlattenAll() error {
	s.orders = make(map[string]types.OrderIntent)
	return nil
}

// SimulateFill returns the deterministic BrokerEvent.FILL for a
// previously placed order, filling the full quantity at its limit
// price. Intended for the replay harness to drive fills without a real
// broker connection.
func (s *SimAdapter) SimulateFill(clientID string, now time.Time) (types.BrokerEvent, bool) {
	intent, ok := s.orders[clientID]
	if !ok {
		return types.BrokerEvent{}, false
	}
	return types.BrokerEvent{
		Type:      types.BrokerEventFill,
		ClientID:  clientID,
		FilledQty: intent.Quantity,
		FillPrice: intent.LimitPrice,
		Timestamp: now,
	}, true
}
