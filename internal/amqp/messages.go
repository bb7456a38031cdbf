package amqp

import (
	"encoding/json"
	"time"
)

// MaterializedMessage announces that a recurring rule produced a ledger
// transaction. The notification worker consumes these and writes notification
// rows; the payload is self-contained so the worker does not need a second
// database round trip.
type MaterializedMessage struct {
	TransactionID int64     `json:"transaction_id"`
	RuleID        int64     `json:"rule_id"`
	FamilyID      int64     `json:"family_id"`
	UserID        int64     `json:"user_id"`
	Kind          string    `json:"kind"`
	AmountCents   int64     `json:"amount_cents"`
	Description   string    `json:"description"`
	Date          string    `json:"date"`
	Timestamp     time.Time `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *MaterializedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MaterializedMessageFromJSON creates a message from JSON bytes
func MaterializedMessageFromJSON(data []byte) (*MaterializedMessage, error) {
	var msg MaterializedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
