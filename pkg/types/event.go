package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// EventType enumerates the event-log payload variants. The original's
// pydantic duck-typed payloads become one Go type per variant (spec
// Design Notes §9); EventType is the discriminator stored alongside the
// JSON-encoded payload.
type EventType string

const (
	EventBarAccepted       EventType = "BAR_1M"
	EventBarRejected       EventType = "BAR_REJECTED"
	EventDecisionRecord    EventType = "DECISION_RECORD"
	EventOrderIntent       EventType = "ORDER_INTENT"
	EventOrderIntentReject EventType = "ORDER_INTENT_REJECTED"
	EventOrderSubmitted    EventType = "ORDER_SUBMITTED"
	EventOrderRejected     EventType = "ORDER_REJECTED"
	EventOrderAcked        EventType = "ORDER_ACKED"
	EventPartialFill       EventType = "PARTIAL_FILL"
	EventFill              EventType = "FILL"
	EventCancelAck         EventType = "CANCEL_ACK"
	EventTradeOpened       EventType = "TRADE_OPENED"
	EventTradeClosed       EventType = "TRADE_CLOSED"
	EventReconcileDiff     EventType = "RECONCILE_DIFF"
	EventFlattenAll        EventType = "FLATTEN_ALL"
	EventFlattenError      EventType = "FLATTEN_ERROR"
	EventChildOrderPlaced  EventType = "CHILD_ORDER_PLACED"
	EventChildMissing      EventType = "CHILD_MISSING"
	EventReadinessSnapshot EventType = "READINESS_SNAPSHOT"
	EventSupervisorHeartbeat EventType = "SUPERVISOR_HEARTBEAT"
)

// Event is the immutable, primary unit of the event log.
type Event struct {
	EventID     string    `json:"event_id"`
	StreamID    string    `json:"stream_id"`
	Timestamp   time.Time `json:"ts"`
	Type        EventType `json:"type"`
	Payload     any       `json:"payload"`
	ConfigHash  string    `json:"config_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// StableJSON marshals v into a deterministic byte sequence. encoding/json
// already sorts map[string]any keys lexically; round-tripping arbitrary
// struct values through an any first ensures that ordering applies at
// every nesting level regardless of the original struct field order.
func StableJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// StableJSON is only ever called on values built from this
		// package's own types plus maps/slices/primitives; a marshal
		// failure here means a caller passed something unsupported.
		panic("types: StableJSON: " + err.Error())
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		panic("types: StableJSON: " + err.Error())
	}
	out, err := json.Marshal(generic)
	if err != nil {
		panic("types: StableJSON: " + err.Error())
	}
	return out
}

// SHA256Hex returns the lowercase hex sha256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// NewEvent builds an Event whose EventID is the content hash over
// (stream_id, ts, type, payload, config_hash), per spec §4.1.
func NewEvent(streamID string, ts time.Time, typ EventType, payload any, configHash string) Event {
	e := Event{
		StreamID:   streamID,
		Timestamp:  ts,
		Type:       typ,
		Payload:    payload,
		ConfigHash: configHash,
		CreatedAt:  ts,
	}
	e.EventID = e.contentHash()
	return e
}

func (e Event) contentHash() string {
	material := map[string]any{
		"stream_id":   e.StreamID,
		"ts":          e.Timestamp.Format(time.RFC3339Nano),
		"type":        string(e.Type),
		"payload":     e.Payload,
		"config_hash": e.ConfigHash,
	}
	return SHA256Hex(StableJSON(material))
}
