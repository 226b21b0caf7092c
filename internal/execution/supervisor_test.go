package execution

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

type fakeAdapter struct {
	brokerID   string
	placeErr   error
	flattenErr error
	placed     int
}

func (f *fakeAdapter) PlaceOrder(intent types.OrderIntent, clientID string) (string, error) {
	f.placed++
	if f.placeErr != nil {
		return "", f.placeErr
	}
	return f.brokerID, nil
}
func (f *fakeAdapter) CancelOrder(clientID string) error { return nil }
func (f *fakeAdapter) FlattenAll() error                 { return f.flattenErr }

func newSupervisor() *Supervisor {
	return NewSupervisor(zap.NewNop())
}

func TestSubmitIsIdempotentByClientID(t *testing.T) {
	s := newSupervisor()
	adapter := &fakeAdapter{brokerID: "B1"}
	intent := types.OrderIntent{IntentID: "intent-1", Direction: types.DirectionLong, Quantity: 1}
	now := time.Now()

	p1, err := s.Submit(intent, "intent-1", adapter, now)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := s.Submit(intent, "intent-1", adapter, now)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Error("expected same parent order returned on resubmit")
	}
	if adapter.placed != 1 {
		t.Errorf("expected adapter called once, got %d", adapter.placed)
	}
	if p1.State != types.ParentAcked || p1.BrokerID != "B1" {
		t.Errorf("expected ACKED with broker id, got %+v", p1)
	}
}

func TestSubmitRejectionLeavesParentRejected(t *testing.T) {
	s := newSupervisor()
	adapter := &fakeAdapter{placeErr: errors.New("no liquidity")}
	intent := types.OrderIntent{IntentID: "intent-2"}
	p, err := s.Submit(intent, "intent-2", adapter, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if p.State != types.ParentRejected {
		t.Errorf("expected REJECTED, got %s", p.State)
	}
}

func TestFillWithoutChildrenMovesToErrorAndReportsChildMissing(t *testing.T) {
	s := newSupervisor()
	adapter := &fakeAdapter{brokerID: "B1"}
	intent := types.OrderIntent{IntentID: "intent-3"}
	s.Submit(intent, "intent-3", adapter, time.Now())

	missing := s.OnBrokerEvent(types.BrokerEvent{
		Type: types.BrokerEventFill, ClientID: "intent-3", FilledQty: 1, FillPrice: decimal.NewFromInt(100),
	}, time.Now())

	if !missing {
		t.Fatal("expected child-missing report")
	}
	if s.Get("intent-3").State != types.ParentError {
		t.Errorf("expected ERROR, got %s", s.Get("intent-3").State)
	}
}

func TestFillWithAckedChildrenFills(t *testing.T) {
	s := newSupervisor()
	adapter := &fakeAdapter{brokerID: "B1"}
	intent := types.OrderIntent{IntentID: "intent-4"}
	s.Submit(intent, "intent-4", adapter, time.Now())
	s.AttachChild("intent-4", types.ChildTypeStop, &types.ChildOrder{Status: types.ParentAcked})
	s.AttachChild("intent-4", types.ChildTypeTarget, &types.ChildOrder{Status: types.ParentAcked})

	missing := s.OnBrokerEvent(types.BrokerEvent{
		Type: types.BrokerEventFill, ClientID: "intent-4", FilledQty: 1, FillPrice: decimal.NewFromInt(100),
	}, time.Now())

	if missing {
		t.Fatal("expected no child-missing report")
	}
	if s.Get("intent-4").State != types.ParentFilled {
		t.Errorf("expected FILLED, got %s", s.Get("intent-4").State)
	}
}

func TestPartialFillIncreasesFilledQtyMonotonically(t *testing.T) {
	s := newSupervisor()
	adapter := &fakeAdapter{brokerID: "B1"}
	intent := types.OrderIntent{IntentID: "intent-5"}
	s.Submit(intent, "intent-5", adapter, time.Now())

	s.OnBrokerEvent(types.BrokerEvent{Type: types.BrokerEventPartialFill, ClientID: "intent-5", FilledQty: 1}, time.Now())
	s.OnBrokerEvent(types.BrokerEvent{Type: types.BrokerEventPartialFill, ClientID: "intent-5", FilledQty: 1}, time.Now())

	if s.Get("intent-5").FilledQty != 1 {
		t.Errorf("expected filled qty to stay at 1, got %d", s.Get("intent-5").FilledQty)
	}
	if s.Get("intent-5").State != types.ParentPartial {
		t.Errorf("expected PARTIAL, got %s", s.Get("intent-5").State)
	}
}

func TestClientOrderIDPrefersIntentID(t *testing.T) {
	s := newSupervisor()
	id := s.ClientOrderID(types.OrderIntent{IntentID: "intent-6"}, time.Now())
	if id != "intent-6" {
		t.Errorf("expected intent-6, got %s", id)
	}
}

func TestClientOrderIDFallsBackWhenEmpty(t *testing.T) {
	s := newSupervisor()
	id := s.ClientOrderID(types.OrderIntent{}, time.Now())
	if len(id) == 0 || id[:4] != "cli-" {
		t.Errorf("expected cli- prefixed fallback id, got %s", id)
	}
}

func TestReconcileReportsMissingAtBroker(t *testing.T) {
	s := newSupervisor()
	adapter := &fakeAdapter{brokerID: "B1"}
	s.Submit(types.OrderIntent{IntentID: "intent-7"}, "intent-7", adapter, time.Now())

	diffs := s.Reconcile(map[string]bool{})
	if len(diffs) != 1 || diffs[0].Reason != "missing_at_broker" {
		t.Errorf("expected one missing_at_broker diff, got %+v", diffs)
	}
}

func TestFlattenAllPropagatesAdapterError(t *testing.T) {
	s := newSupervisor()
	adapter := &fakeAdapter{flattenErr: errors.New("broker down")}
	if err := s.FlattenAll(adapter); err == nil {
		t.Error("expected flatten error to propagate")
	}
}
