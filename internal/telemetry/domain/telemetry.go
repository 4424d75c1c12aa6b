package domain

import (
	"encoding/json"
	"time"
)

// Event is a storefront domain event (login, order committed, payment ingested). It is
// serialized as JSON onto Kafka and attached as an OTel log record.
type Event struct {
	PrincipalID   string          `json:"principalId,omitempty"`
	PrincipalKind string          `json:"principalKind,omitempty"`
	EventType     string          `json:"eventType"`
	Source        string          `json:"source,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}
