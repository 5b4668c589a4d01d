package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a ledger mutation.
type EventType string

const (
	EventExpenseCreated  EventType = "expense.created"
	EventExpenseDeleted  EventType = "expense.deleted"
	EventInstallmentPaid EventType = "expense.installment_paid"
	EventLedgerWiped     EventType = "ledger.wiped"
	EventIncomeUpdated   EventType = "income.updated"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventExpenseCreated, EventExpenseDeleted, EventInstallmentPaid, EventLedgerWiped, EventIncomeUpdated:
		return true
	}
	return false
}

// LedgerEvent is a lightweight notification; consumers reload whatever
// state they need from the ledger itself.
type LedgerEvent struct {
	Type      EventType `json:"type"`
	UserID    int64     `json:"user_id"`
	EntityID  int64     `json:"entity_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(t EventType, userID, entityID int64) *LedgerEvent {
	return &LedgerEvent{
		Type:      t,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and checks an event body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.UserID <= 0 {
		return nil, fmt.Errorf("event without user id")
	}
	return &ev, nil
}
