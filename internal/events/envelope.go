package events

import (
	"encoding/json"
	"time"
)

// Envelope is what goes over the wire. Payload is kept raw so consumers can
// decode it by EventType.
type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}
