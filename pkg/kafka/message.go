package kafka

import (
	"encoding/json"
	"time"
)

// NotificationEvent is the wire shape of a realtime push notification. The
// recipient id keys the partition so one user's notifications stay ordered.
type NotificationEvent struct {
	EventType   string          `json:"event_type"`
	RecipientID string          `json:"recipient_id"`
	ActorID     string          `json:"actor_id,omitempty"`
	EntityKind  string          `json:"entity_kind,omitempty"`
	EntityID    string          `json:"entity_id,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	TraceParent string          `json:"trace_parent,omitempty"`
}

func (e *NotificationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
