package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	SessionID string    `json:"session_id,omitempty"`
	AccountID string    `json:"account_id"`
	Amount    string    `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

// Logger emits one JSON line per balance-affecting operation. It is the
// audit trail for every debit, refund, settlement and payout, including the
// ones that failed.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogEntry(sessionID, accountID, reason string, amount decimal.Decimal, status string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "LEDGER_ENTRY",
		SessionID: sessionID,
		AccountID: accountID,
		Amount:    amount.String(),
		Status:    status,
		Details:   map[string]string{"reason": reason},
	})
}

func (a *Logger) LogTransition(sessionID, accountID, transition, status string) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "STATE_TRANSITION",
		SessionID: sessionID,
		AccountID: accountID,
		Status:    status,
		Details:   map[string]string{"transition": transition},
	})
}

func (a *Logger) LogSettlementGap(sessionID, accountID string, debited, actual decimal.Decimal) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "SETTLEMENT_CAP",
		SessionID: sessionID,
		AccountID: accountID,
		Amount:    debited.String(),
		Status:    "CAPPED",
		Details: map[string]string{
			"actual_amount":  actual.String(),
			"debited_amount": debited.String(),
		},
	})
}

func (a *Logger) LogError(sessionID, accountID string, err error) {
	a.log(Event{
		Timestamp: time.Now(),
		EventType: "ERROR",
		SessionID: sessionID,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
