package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RecurringTaskMessage is the lightweight task descriptor the scheduler
// emits for each due recurring transaction. The worker re-fetches the
// full record, so the payload carries identity only.
type RecurringTaskMessage struct {
	MessageID     string    `json:"message_id"`
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewRecurringTaskMessage creates a task descriptor with a fresh message id.
func NewRecurringTaskMessage(transactionID, userID string) *RecurringTaskMessage {
	return &RecurringTaskMessage{
		MessageID:     uuid.NewString(),
		TransactionID: transactionID,
		UserID:        userID,
		Timestamp:     time.Now(),
	}
}

// Validate reports whether the payload carries the identity the processor
// needs. A payload failing this check is malformed and must not be retried.
func (m *RecurringTaskMessage) Validate() error {
	if m.TransactionID == "" || m.UserID == "" {
		return errors.New("task payload missing transaction id or user id")
	}
	return nil
}

func (m *RecurringTaskMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecurringTaskMessageFromJSON(data []byte) (*RecurringTaskMessage, error) {
	var msg RecurringTaskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeferredError signals that a task was rejected by the per-user throttle
// and should be redelivered after the window resets. It is a scheduling
// outcome, not a failure.
type DeferredError struct {
	RetryAfter time.Duration
}

func (e *DeferredError) Error() string {
	return "task deferred, retry after " + e.RetryAfter.String()
}
