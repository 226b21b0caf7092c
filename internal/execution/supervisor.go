package execution

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

// childLeg is one bracket leg's static shape: its type, the order type
// it's placed as, and which of intent.Bracket's prices it carries.
type childLeg struct {
	childType types.ChildType
	entryType types.EntryType
}

var bracketLegs = []childLeg{
	{types.ChildTypeStop, types.EntryTypeStopLimit},
	{types.ChildTypeTarget, types.EntryTypeLimit},
}

// Supervisor tracks every parent order's state machine, folds broker
// events into it, and supervises child (stop/target) health. Grounded
// on original_source/core/execution_supervisor.py's ExecutionSupervisor,
// adapted to the teacher's mutex-guarded-map-plus-zap-logger idiom seen
// in order_manager.go.
type Supervisor struct {
	logger *zap.Logger
	mu     sync.Mutex
	orders map[string]*types.ParentOrder
	seq    int
}

// NewSupervisor returns an empty Supervisor.
func NewSupervisor(logger *zap.Logger) *Supervisor {
	return &Supervisor{
		logger: logger.Named("execution-supervisor"),
		orders: make(map[string]*types.ParentOrder),
	}
}

// Adapter is the minimal broker surface the supervisor drives.
// Concrete adapters (sim, tradovate, ninjatrader) live in internal/broker.
type Adapter interface {
	PlaceOrder(intent types.OrderIntent, clientID string) (brokerID string, err error)
	CancelOrder(clientID string) error
	FlattenAll() error
}

// ClientOrderID returns intent.IntentID when present, else a
// "cli-<unixms>-<seq>-<uuid8>" fallback whose trailing eight uuid
// characters keep it unique across restarts, extending the original's
// f"cli-{int(now.timestamp()*1000)}-{len(self._orders)+1}" shape.
func (s *Supervisor) ClientOrderID(intent types.OrderIntent, now time.Time) string {
	if intent.IntentID != "" {
		return intent.IntentID
	}
	s.seq++
	return fmt.Sprintf("cli-%d-%d-%s", now.UnixMilli(), s.seq, uuid.NewString()[:8])
}

// Submit creates (or returns, if already tracked) the idempotent parent
// order for intent and submits it via adapter. Resubmitting the same
// client id is a no-op — the supervisor never calls the adapter twice
// for one parent.
func (s *Supervisor) Submit(intent types.OrderIntent, clientID string, adapter Adapter, now time.Time) (*types.ParentOrder, error) {
	s.mu.Lock()
	if existing, ok := s.orders[clientID]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	parent := &types.ParentOrder{
		ClientID:   clientID,
		State:      types.ParentSubmitting,
		Direction:  intent.Direction,
		Quantity:   intent.Quantity,
		EntryPrice: intent.LimitPrice,
		Children:   make(map[types.ChildType]*types.ChildOrder),
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   map[string]any{"template_id": intent.TemplateID},
	}
	s.orders[clientID] = parent
	s.mu.Unlock()

	brokerID, err := adapter.PlaceOrder(intent, clientID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		parent.State = types.ParentRejected
		parent.UpdatedAt = now
		s.logger.Warn("order rejected", zap.String("client_id", clientID), zap.Error(err))
		return parent, nil
	}
	parent.BrokerID = brokerID
	parent.State = types.ParentAcked
	parent.UpdatedAt = now
	s.logger.Info("order acked", zap.String("client_id", clientID), zap.String("broker_id", brokerID))
	return parent, nil
}

// SubmitChildren places and attaches the STOP and TARGET bracket legs
// for an already-acked parent, per spec §3's ParentOrder invariant (i)
// and §4.10 ("children are created with the parent"). Child client ids
// are derived from the parent's as "<clientID>-STOP"/"-TARGET" so a
// reconciliation re-place (Reconcile's "repair... by the same client
// id") stays idempotent. Must run before any broker FILL event for
// clientID is folded in, or OnBrokerEvent's childrenReady check holds
// the parent in ERROR with childMissing=true.
func (s *Supervisor) SubmitChildren(intent types.OrderIntent, clientID string, adapter Adapter, now time.Time) error {
	s.mu.Lock()
	parent, ok := s.orders[clientID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("execution: submit children: unknown parent %s", clientID)
	}

	childDirection := types.DirectionShort
	if intent.Direction == types.DirectionShort {
		childDirection = types.DirectionLong
	}

	for _, leg := range bracketLegs {
		price := intent.Bracket.TargetPrice
		if leg.childType == types.ChildTypeStop {
			price = intent.Bracket.StopPrice
		}
		childClientID := clientID + "-" + string(leg.childType)
		childIntent := types.OrderIntent{
			Direction:  childDirection,
			Quantity:   intent.Quantity,
			EntryType:  leg.entryType,
			LimitPrice: price,
			TemplateID: intent.TemplateID,
			CreatedAt:  now,
		}

		brokerID, err := adapter.PlaceOrder(childIntent, childClientID)
		if err != nil {
			s.mu.Lock()
			parent.Children[leg.childType] = &types.ChildOrder{ChildType: leg.childType, Status: types.ParentRejected, StopPrice: price}
			parent.State = types.ParentError
			s.mu.Unlock()
			s.logger.Error("child order rejected", zap.String("client_id", clientID), zap.String("child_type", string(leg.childType)), zap.Error(err))
			return fmt.Errorf("execution: place %s child: %w", leg.childType, err)
		}

		child := &types.ChildOrder{ChildType: leg.childType, BrokerID: brokerID, Status: types.ParentAcked, StopPrice: price, LimitPrice: price}
		s.AttachChild(clientID, leg.childType, child)
		s.logger.Info("child order acked", zap.String("client_id", clientID), zap.String("child_client_id", childClientID), zap.String("child_type", string(leg.childType)))
	}
	return nil
}

// Get returns the tracked parent order, or nil if untracked.
func (s *Supervisor) Get(clientID string) *types.ParentOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[clientID]
}

// OnBrokerEvent folds one normalised broker event into the matching
// parent order's state machine. Unrecognised client ids are ignored —
// the event likely belongs to a previous run's order we never tracked.
// A FILL event requires both children present and ACKED; their absence
// moves the parent to ERROR and reports childMissing=true so the caller
// can arm the kill switch, mirroring the original's supervision intent.
func (s *Supervisor) OnBrokerEvent(ev types.BrokerEvent, now time.Time) (childMissing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.orders[ev.ClientID]
	if !ok {
		return false
	}
	parent.UpdatedAt = now

	switch ev.Type {
	case types.BrokerEventOrderAck:
		parent.BrokerID = ev.BrokerID
		parent.State = types.ParentAcked
	case types.BrokerEventOrderReject:
		parent.State = types.ParentRejected
	case types.BrokerEventPartialFill:
		if ev.FilledQty > parent.FilledQty {
			parent.FilledQty = ev.FilledQty
			parent.AvgFillPrice = ev.FillPrice
		}
		parent.State = types.ParentPartial
	case types.BrokerEventFill:
		if ev.FilledQty > parent.FilledQty {
			parent.FilledQty = ev.FilledQty
			parent.AvgFillPrice = ev.FillPrice
		}
		if !childrenReady(parent) {
			parent.State = types.ParentError
			s.logger.Error("fill without acked children", zap.String("client_id", ev.ClientID))
			return true
		}
		parent.State = types.ParentFilled
	case types.BrokerEventCancelAck:
		parent.State = types.ParentCanceled
	case types.BrokerEventCancelReject:
		parent.State = types.ParentError
	}
	return false
}

// childrenReady reports whether both STOP and TARGET children exist and
// are tracked as at least ACKED.
func childrenReady(parent *types.ParentOrder) bool {
	for _, ct := range []types.ChildType{types.ChildTypeStop, types.ChildTypeTarget} {
		child, ok := parent.Children[ct]
		if !ok {
			return false
		}
		switch child.Status {
		case types.ParentAcked, types.ParentPartial, types.ParentFilled, types.ParentDone:
		default:
			return false
		}
	}
	return true
}

// AttachChild records a bracket leg placed for parent.
func (s *Supervisor) AttachChild(clientID string, childType types.ChildType, child *types.ChildOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.orders[clientID]
	if !ok {
		return
	}
	parent.Children[childType] = child
}

// TTLExpired reports whether parent has sat unfilled past ttlSeconds
// since creation, per the constitution contract's ttl_seconds.
func (s *Supervisor) TTLExpired(clientID string, now time.Time, ttlSeconds int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.orders[clientID]
	if !ok {
		return false
	}
	switch parent.State {
	case types.ParentFilled, types.ParentDone, types.ParentCanceled, types.ParentRejected, types.ParentError:
		return false
	}
	return now.Sub(parent.CreatedAt) > time.Duration(ttlSeconds)*time.Second
}

// FlattenAll asks adapter to cancel its working orders and close the
// position at market, returning any error so the caller can emit
// FLATTEN_ERROR and keep the kill switch armed. The supervisor's own
// tracked parent states are left unchanged.
func (s *Supervisor) FlattenAll(adapter Adapter) error {
	s.logger.Warn("flatten all")
	return adapter.FlattenAll()
}

// ReconcileDiff is one local/broker mismatch found during reconciliation.
type ReconcileDiff struct {
	ClientID string `json:"client_id"`
	Reason   string `json:"reason"`
}

// Reconcile compares broker-reported open order ids to locally tracked
// non-terminal parents, returning one ReconcileDiff per mismatch. It
// never mutates state itself — repair (re-placing a missing child by
// its stable client id) is the caller's responsibility, kept idempotent
// by construction since AttachChild/Submit key off the same client id.
func (s *Supervisor) Reconcile(brokerOpenClientIDs map[string]bool) []ReconcileDiff {
	s.mu.Lock()
	defer s.mu.Unlock()

	var diffs []ReconcileDiff
	for id, parent := range s.orders {
		switch parent.State {
		case types.ParentAcked, types.ParentPartial, types.ParentSubmitting:
			if !brokerOpenClientIDs[id] {
				diffs = append(diffs, ReconcileDiff{ClientID: id, Reason: "missing_at_broker"})
			}
		}
	}
	for id := range brokerOpenClientIDs {
		if _, tracked := s.orders[id]; !tracked {
			diffs = append(diffs, ReconcileDiff{ClientID: id, Reason: "untracked_at_local"})
		}
	}
	return diffs
}
