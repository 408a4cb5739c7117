package services

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/astroline/backend/internal/audit"
	"github.com/astroline/backend/internal/models"
)

// WalletService exposes wallet operations that sit outside the consultation
// lifecycle: gateway-verified recharges, astrologer withdrawals, and the
// balance/history read side.
type WalletService struct {
	db            *sql.DB
	ledger        *WalletLedgerService
	payouts       *PayoutService
	audit         *audit.Logger
	minWithdrawal decimal.Decimal
}

func NewWalletService(db *sql.DB, ledger *WalletLedgerService, payouts *PayoutService) *WalletService {
	minWithdrawal := decimal.NewFromInt(100)
	if env := os.Getenv("MIN_WITHDRAWAL_AMOUNT"); env != "" {
		if val, err := decimal.NewFromString(env); err == nil {
			minWithdrawal = val
		}
	}
	return &WalletService{
		db:            db,
		ledger:        ledger,
		payouts:       payouts,
		audit:         audit.NewLogger(),
		minWithdrawal: minWithdrawal,
	}
}

// RechargeEvent is a verified credit event from the payment gateway. The
// gateway has already verified the payment; this service only records it.
type RechargeEvent struct {
	AccountID         string          `json:"accountId" validate:"required"`
	Amount            decimal.Decimal `json:"amount" validate:"required"`
	ExternalReference string          `json:"externalReference" validate:"required"`
}

// Recharge credits the account with a gateway payment, exactly once per
// external reference. Replayed events return the original entry untouched.
func (s *WalletService) Recharge(event RechargeEvent) (*models.LedgerEntry, bool, error) {
	if event.Amount.Sign() <= 0 {
		return nil, false, fmt.Errorf("recharge amount must be positive, got %s", event.Amount)
	}

	if existing, err := s.ledger.FindByExternalReference(event.ExternalReference); err == nil {
		log.Printf("[WALLET] Duplicate recharge event detected: %s", event.ExternalReference)
		return existing, true, nil
	} else if err != models.ErrNotFound {
		return nil, false, err
	}

	entry, err := s.ledger.Append(event.AccountID, models.EntryDirectionCredit, event.Amount,
		models.ReasonRechargeCredit, nil, &event.ExternalReference)
	if err != nil {
		// A concurrent replay of the same event loses the unique-index race.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			existing, ferr := s.ledger.FindByExternalReference(event.ExternalReference)
			if ferr == nil {
				return existing, true, nil
			}
		}
		s.audit.LogError("", event.AccountID, err)
		return nil, false, err
	}

	return entry, false, nil
}

// Withdraw debits the astrologer's earnings and emits a payout instruction
// to their bank. The ledger rejects withdrawals beyond the balance.
func (s *WalletService) Withdraw(astrologerID string, amount decimal.Decimal) (*models.LedgerEntry, error) {
	if amount.LessThan(s.minWithdrawal) {
		return nil, &WithdrawalBelowMinimumError{Minimum: s.minWithdrawal}
	}

	astrologer, err := s.getAstrologer(astrologerID)
	if err != nil {
		return nil, err
	}

	entry, err := s.ledger.Append(astrologerID, models.EntryDirectionDebit, amount,
		models.ReasonWithdrawalDebit, nil, nil)
	if err != nil {
		s.audit.LogError("", astrologerID, err)
		return nil, err
	}

	// The payout runs after the ledger commit; a delivery failure is retried
	// out of band against the recorded entry, never by re-debiting.
	if err := s.payouts.SendPayout(entry, astrologer); err != nil {
		log.Printf("[WALLET] Payout dispatch failed for entry %s: %v", entry.EntryID, err)
		s.audit.LogError("", astrologerID, err)
	}

	return entry, nil
}

// Balance returns the account's wallet balance.
func (s *WalletService) Balance(accountID string) (decimal.Decimal, error) {
	return s.ledger.GetBalance(accountID)
}

// History returns the account's ledger entries, newest first.
func (s *WalletService) History(accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	return s.ledger.ListEntries(accountID, limit, offset)
}

func (s *WalletService) getAstrologer(astrologerID string) (*models.Astrologer, error) {
	a := &models.Astrologer{}
	err := s.db.QueryRow(`
		SELECT astrologer_id, display_name, status, payout_bank_bic, payout_account
		FROM astrologers
		WHERE astrologer_id = $1`, astrologerID).Scan(
		&a.AstrologerID, &a.DisplayName, &a.Status, &a.PayoutBankBIC, &a.PayoutAccount)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.Status != models.AstrologerStatusActive {
		return nil, models.ErrAstrologerNotAvailable
	}
	return a, nil
}

// WithdrawalBelowMinimumError rejects a withdrawal under the configured
// minimum.
type WithdrawalBelowMinimumError struct {
	Minimum decimal.Decimal
}

func (e *WithdrawalBelowMinimumError) Error() string {
	return "withdrawal amount is below the minimum of " + e.Minimum.String()
}
