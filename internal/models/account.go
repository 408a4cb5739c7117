package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry directions. The direction carries the sign; amounts are always positive.
const (
	EntryDirectionCredit = "CREDIT"
	EntryDirectionDebit  = "DEBIT"
)

// Entry reasons
const (
	ReasonBookingDebit    = "booking_debit"
	ReasonRefundCredit    = "refund_credit"
	ReasonRechargeCredit  = "recharge_credit"
	ReasonWithdrawalDebit = "withdrawal_debit"
	ReasonEarningCredit   = "earning_credit"
)

// ValidEntryReason reports whether reason is one of the recognized ledger reasons.
func ValidEntryReason(reason string) bool {
	switch reason {
	case ReasonBookingDebit, ReasonRefundCredit, ReasonRechargeCredit,
		ReasonWithdrawalDebit, ReasonEarningCredit:
		return true
	}
	return false
}

// LedgerEntry is an immutable balance-affecting record. Entries are only ever
// appended; Balance is the account balance after this entry was applied.
type LedgerEntry struct {
	EntryID           string          `json:"entry_id" db:"entry_id"`
	AccountID         string          `json:"account_id" db:"account_id"`
	Direction         string          `json:"direction" db:"direction"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Reason            string          `json:"reason" db:"reason"`
	SessionID         *string         `json:"session_id,omitempty" db:"session_id"`
	ExternalReference *string         `json:"external_reference,omitempty" db:"external_reference"`
	Balance           decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}

// SignedAmount returns the amount with the direction applied.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.Direction == EntryDirectionDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// Account is the materialized balance view of an account's ledger. Rows are
// created implicitly on the first entry and never deleted.
type Account struct {
	AccountID string          `json:"account_id" db:"account_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Version   int             `json:"version" db:"version"` // for optimistic locking
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
