package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/astroline/backend/internal/models"
)

func TestWalletLedgerService_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWalletLedgerService(db)

	t.Run("successful credit", func(t *testing.T) {
		accountID := "user1"
		ref := "evt-001"

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT account_id, balance, version, updated_at FROM accounts WHERE account_id = \\$1 FOR UPDATE").
			WithArgs(accountID).
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "updated_at"}).
				AddRow(accountID, "200", 3, time.Now()))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), accountID, models.EntryDirectionCredit, decimal.NewFromInt(50),
				models.ReasonRechargeCredit, nil, ref, decimal.NewFromInt(250), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE account_id = \\$3 AND version = \\$4").
			WithArgs(decimal.NewFromInt(250), sqlmock.AnyArg(), accountID, 3).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		entry, err := service.Append(accountID, models.EntryDirectionCredit, decimal.NewFromInt(50),
			models.ReasonRechargeCredit, nil, &ref)
		assert.NoError(t, err)
		assert.True(t, entry.Balance.Equal(decimal.NewFromInt(250)))
		assert.Equal(t, models.ReasonRechargeCredit, entry.Reason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("debit rejected on insufficient balance", func(t *testing.T) {
		accountID := "user1"

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT account_id, balance, version, updated_at FROM accounts WHERE account_id = \\$1 FOR UPDATE").
			WithArgs(accountID).
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "updated_at"}).
				AddRow(accountID, "30", 1, time.Now()))

		mock.ExpectRollback()

		_, err := service.Append(accountID, models.EntryDirectionDebit, decimal.NewFromInt(50),
			models.ReasonBookingDebit, nil, nil)
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("account created implicitly on first entry", func(t *testing.T) {
		accountID := "newuser"

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT account_id, balance, version, updated_at FROM accounts WHERE account_id = \\$1 FOR UPDATE").
			WithArgs(accountID).
			WillReturnError(sql.ErrNoRows)

		mock.ExpectQuery("INSERT INTO accounts \\(account_id, balance, version, updated_at\\) VALUES \\(\\$1, 0, 1, \\$2\\) RETURNING account_id, balance, version, updated_at").
			WithArgs(accountID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "updated_at"}).
				AddRow(accountID, "0", 1, time.Now()))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), accountID, models.EntryDirectionCredit, decimal.NewFromInt(100),
				models.ReasonRechargeCredit, nil, "evt-002", decimal.NewFromInt(100), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE account_id = \\$3 AND version = \\$4").
			WithArgs(decimal.NewFromInt(100), sqlmock.AnyArg(), accountID, 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		ref := "evt-002"
		entry, err := service.Append(accountID, models.EntryDirectionCredit, decimal.NewFromInt(100),
			models.ReasonRechargeCredit, nil, &ref)
		assert.NoError(t, err)
		assert.True(t, entry.Balance.Equal(decimal.NewFromInt(100)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("optimistic lock failure", func(t *testing.T) {
		accountID := "user1"

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT account_id, balance, version, updated_at FROM accounts WHERE account_id = \\$1 FOR UPDATE").
			WithArgs(accountID).
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "updated_at"}).
				AddRow(accountID, "200", 2, time.Now()))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE account_id = \\$3 AND version = \\$4").
			WithArgs(decimal.NewFromInt(250), sqlmock.AnyArg(), accountID, 2).
			WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectRollback()

		_, err := service.Append(accountID, models.EntryDirectionCredit, decimal.NewFromInt(50),
			models.ReasonRechargeCredit, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "optimistic lock failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := service.Append("user1", models.EntryDirectionCredit, decimal.Zero,
			models.ReasonRechargeCredit, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
	})

	t.Run("rejects unknown direction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := service.Append("user1", "SIDEWAYS", decimal.NewFromInt(10),
			models.ReasonRechargeCredit, nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown ledger direction")
	})

	t.Run("rejects unknown reason", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := service.Append("user1", models.EntryDirectionCredit, decimal.NewFromInt(10),
			"gift", nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown ledger reason")
	})
}

func TestWalletLedgerService_GetBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWalletLedgerService(db)

	t.Run("existing account", func(t *testing.T) {
		mock.ExpectQuery("SELECT balance FROM accounts WHERE account_id = \\$1").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("120.50"))

		balance, err := service.GetBalance("user1")
		assert.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("120.50")))
	})

	t.Run("account with no ledger history has zero balance", func(t *testing.T) {
		mock.ExpectQuery("SELECT balance FROM accounts WHERE account_id = \\$1").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		balance, err := service.GetBalance("ghost")
		assert.NoError(t, err)
		assert.True(t, balance.IsZero())
	})
}

func TestWalletLedgerService_ListEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWalletLedgerService(db)

	t.Run("newest first with clamped limit", func(t *testing.T) {
		sessionID := "sess-1"
		mock.ExpectQuery("SELECT entry_id, account_id, direction, amount, reason, session_id, external_reference, balance, created_at FROM ledger_entries WHERE account_id = \\$1 ORDER BY created_at DESC LIMIT \\$2 OFFSET \\$3").
			WithArgs("user1", 50, 0).
			WillReturnRows(sqlmock.NewRows([]string{"entry_id", "account_id", "direction", "amount", "reason", "session_id", "external_reference", "balance", "created_at"}).
				AddRow("e2", "user1", "CREDIT", "50", "refund_credit", sessionID, nil, "100", time.Now()).
				AddRow("e1", "user1", "DEBIT", "150", "booking_debit", sessionID, nil, "50", time.Now()))

		entries, err := service.ListEntries("user1", 0, 0)
		assert.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.Equal(t, "e2", entries[0].EntryID)
		assert.Equal(t, models.ReasonRefundCredit, entries[0].Reason)
	})
}

func TestWalletLedgerService_FindByExternalReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewWalletLedgerService(db)

	t.Run("unknown reference", func(t *testing.T) {
		mock.ExpectQuery("SELECT entry_id, account_id, direction, amount, reason, session_id, external_reference, balance, created_at FROM ledger_entries WHERE external_reference = \\$1").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := service.FindByExternalReference("missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
