package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"iexpense/internal/expense"
)

// RecordsChangedMessage announces one store mutation. It carries ids only;
// consumers that need the records read them from the store.
type RecordsChangedMessage struct {
	Kind      string      `json:"kind"`
	IDs       []uuid.UUID `json:"ids"`
	Count     int         `json:"count"`
	Persisted bool        `json:"persisted"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewRecordsChangedMessage builds a message from a store event
func NewRecordsChangedMessage(ev expense.Event) *RecordsChangedMessage {
	ids := make([]uuid.UUID, len(ev.Records))
	for i, r := range ev.Records {
		ids[i] = r.ID
	}
	return &RecordsChangedMessage{
		Kind:      string(ev.Kind),
		IDs:       ids,
		Count:     ev.Count,
		Persisted: ev.PersistErr == nil,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordsChangedMessageFromJSON creates a message from JSON bytes
func RecordsChangedMessageFromJSON(data []byte) (*RecordsChangedMessage, error) {
	var msg RecordsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
