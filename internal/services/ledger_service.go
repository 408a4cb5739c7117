package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/astroline/backend/internal/audit"
	"github.com/astroline/backend/internal/models"
)

// WalletLedgerService is the sole mutation point for account balances. Every
// balance change is an appended ledger entry plus a versioned update of the
// materialized accounts row, inside one database transaction.
type WalletLedgerService struct {
	db    *sql.DB
	audit *audit.Logger
}

func NewWalletLedgerService(db *sql.DB) *WalletLedgerService {
	return &WalletLedgerService{
		db:    db,
		audit: audit.NewLogger(),
	}
}

// Append applies a single entry in its own transaction.
func (s *WalletLedgerService) Append(accountID, direction string, amount decimal.Decimal, reason string, sessionID, externalRef *string) (*models.LedgerEntry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	entry, err := s.AppendTx(tx, accountID, direction, amount, reason, sessionID, externalRef)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

// AppendTx applies a single entry within the caller's transaction. The
// account row is locked for the duration, the new balance is checked against
// zero for debits, and the entry records the resulting balance.
func (s *WalletLedgerService) AppendTx(tx *sql.Tx, accountID, direction string, amount decimal.Decimal, reason string, sessionID, externalRef *string) (*models.LedgerEntry, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("ledger amount must be positive, got %s", amount)
	}
	if direction != models.EntryDirectionCredit && direction != models.EntryDirectionDebit {
		return nil, fmt.Errorf("unknown ledger direction %q", direction)
	}
	if !models.ValidEntryReason(reason) {
		return nil, fmt.Errorf("unknown ledger reason %q", reason)
	}

	account, err := s.lockAccount(tx, accountID)
	if err != nil {
		return nil, err
	}

	newBalance := account.Balance.Add(amount)
	if direction == models.EntryDirectionDebit {
		newBalance = account.Balance.Sub(amount)
		if newBalance.Sign() < 0 {
			s.audit.LogEntry(stringOrEmpty(sessionID), accountID, reason, amount, "INSUFFICIENT_BALANCE")
			return nil, models.ErrInsufficientBalance
		}
	}

	entry := &models.LedgerEntry{
		EntryID:           uuid.New().String(),
		AccountID:         accountID,
		Direction:         direction,
		Amount:            amount,
		Reason:            reason,
		SessionID:         sessionID,
		ExternalReference: externalRef,
		Balance:           newBalance,
		CreatedAt:         time.Now(),
	}

	if err := s.createLedgerEntry(tx, entry); err != nil {
		return nil, err
	}

	if err := s.updateAccountBalance(tx, accountID, newBalance, account.Version); err != nil {
		return nil, err
	}

	s.audit.LogEntry(stringOrEmpty(sessionID), accountID, reason, amount, "SUCCESS")
	return entry, nil
}

// GetBalance returns the materialized balance. An account that has never had
// a ledger entry has balance zero.
func (s *WalletLedgerService) GetBalance(accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRow(`
		SELECT balance FROM accounts WHERE account_id = $1`, accountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// ListEntries returns the account's ledger history, newest first.
func (s *WalletLedgerService) ListEntries(accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(`
		SELECT entry_id, account_id, direction, amount, reason, session_id, external_reference, balance, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.EntryID, &e.AccountID, &e.Direction, &e.Amount, &e.Reason,
			&e.SessionID, &e.ExternalReference, &e.Balance, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FindByExternalReference looks an entry up by its gateway reference, used
// for recharge replay protection.
func (s *WalletLedgerService) FindByExternalReference(ref string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := s.db.QueryRow(`
		SELECT entry_id, account_id, direction, amount, reason, session_id, external_reference, balance, created_at
		FROM ledger_entries
		WHERE external_reference = $1`, ref).Scan(
		&e.EntryID, &e.AccountID, &e.Direction, &e.Amount, &e.Reason,
		&e.SessionID, &e.ExternalReference, &e.Balance, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *WalletLedgerService) lockAccount(tx *sql.Tx, accountID string) (*models.Account, error) {
	account := &models.Account{}
	err := tx.QueryRow(`
		SELECT account_id, balance, version, updated_at
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE`, accountID).Scan(&account.AccountID, &account.Balance, &account.Version, &account.UpdatedAt)

	if err == sql.ErrNoRows {
		// Accounts are created implicitly on the first entry.
		err = tx.QueryRow(`
			INSERT INTO accounts (account_id, balance, version, updated_at)
			VALUES ($1, 0, 1, $2)
			RETURNING account_id, balance, version, updated_at`,
			accountID, time.Now()).Scan(&account.AccountID, &account.Balance, &account.Version, &account.UpdatedAt)
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *WalletLedgerService) createLedgerEntry(tx *sql.Tx, e *models.LedgerEntry) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (entry_id, account_id, direction, amount, reason, session_id, external_reference, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.EntryID, e.AccountID, e.Direction, e.Amount, e.Reason, e.SessionID, e.ExternalReference, e.Balance, e.CreatedAt)
	return err
}

func (s *WalletLedgerService) updateAccountBalance(tx *sql.Tx, accountID string, newBalance decimal.Decimal, version int) error {
	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE account_id = $3 AND version = $4`,
		newBalance, time.Now(), accountID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for account %s", accountID)
	}

	return nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
