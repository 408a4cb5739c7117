package services

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/astroline/backend/internal/models"
)

func testSessionRows(s *models.ConsultationSession) *sqlmock.Rows {
	nullStr := func(p *string) driver.Value {
		if p == nil {
			return nil
		}
		return *p
	}
	nullInt := func(p *int) driver.Value {
		if p == nil {
			return nil
		}
		return int64(*p)
	}
	nullTime := func(p *time.Time) driver.Value {
		if p == nil {
			return nil
		}
		return *p
	}

	return sqlmock.NewRows([]string{
		"session_id", "user_id", "astrologer_id", "type", "state", "rate_per_minute",
		"estimate_minutes", "amount_debited", "total_amount", "duration_minutes",
		"channel_token", "cancelled_by", "user_rating", "user_review", "astrologer_notes",
		"scheduled_at", "started_at", "ended_at", "created_at", "updated_at",
	}).AddRow(
		s.SessionID, s.UserID, s.AstrologerID, s.Type, s.State, s.RatePerMinute.String(),
		s.EstimateMinutes, s.AmountDebited.String(), s.TotalAmount.String(), s.DurationMinutes,
		s.ChannelToken, nullStr(s.CancelledBy), nullInt(s.UserRating), nullStr(s.UserReview), nullStr(s.AstrologerNotes),
		s.ScheduledAt, nullTime(s.StartedAt), nullTime(s.EndedAt), s.CreatedAt, s.UpdatedAt,
	)
}

func testSession(state string) *models.ConsultationSession {
	now := time.Now()
	return &models.ConsultationSession{
		SessionID:       "sess-1",
		UserID:          "user1",
		AstrologerID:    "astro1",
		Type:            models.SessionTypeChat,
		State:           state,
		RatePerMinute:   decimal.NewFromInt(10),
		EstimateMinutes: 15,
		AmountDebited:   decimal.NewFromInt(150),
		TotalAmount:     decimal.NewFromInt(150),
		ChannelToken:    "token-1",
		ScheduledAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

const selectSessionQuery = "SELECT session_id, user_id, astrologer_id, type, state, rate_per_minute, .* FROM consultation_sessions WHERE session_id = \\$1"

func TestConsultationService_Book(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewConsultationService(db, NewWalletLedgerService(db),
		NewRateResolver(db), NewChannelService(nil, 0))

	t.Run("debits the full estimate up front", func(t *testing.T) {
		mock.ExpectQuery("SELECT status, chat_rate, voice_rate, video_rate FROM astrologers WHERE astrologer_id = \\$1").
			WithArgs("astro1").
			WillReturnRows(sqlmock.NewRows([]string{"status", "chat_rate", "voice_rate", "video_rate"}).
				AddRow("ACTIVE", "10", nil, nil))

		mock.ExpectBegin()

		mock.ExpectExec("INSERT INTO consultation_sessions").
			WithArgs(sqlmock.AnyArg(), "user1", "astro1", "chat", "pending", decimal.NewFromInt(10),
				15, decimal.NewFromInt(150), decimal.NewFromInt(150), 0,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("SELECT account_id, balance, version, updated_at FROM accounts WHERE account_id = \\$1 FOR UPDATE").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "updated_at"}).
				AddRow("user1", "200", 1, time.Now()))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), "user1", models.EntryDirectionDebit, decimal.NewFromInt(150),
				models.ReasonBookingDebit, sqlmock.AnyArg(), nil, decimal.NewFromInt(50), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(decimal.NewFromInt(50), sqlmock.AnyArg(), "user1", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		result, err := service.Book(context.Background(), "user1", BookRequest{
			AstrologerID:    "astro1",
			Type:            models.SessionTypeChat,
			EstimateMinutes: 15,
		})
		assert.NoError(t, err)
		assert.Equal(t, models.SessionStatePending, result.Session.State)
		assert.True(t, result.Session.AmountDebited.Equal(decimal.NewFromInt(150)))
		assert.True(t, result.WalletBalanceAfter.Equal(decimal.NewFromInt(50)))
		assert.NotEmpty(t, result.Session.ChannelToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance leaves no session behind", func(t *testing.T) {
		mock.ExpectQuery("SELECT status, chat_rate, voice_rate, video_rate FROM astrologers WHERE astrologer_id = \\$1").
			WithArgs("astro1").
			WillReturnRows(sqlmock.NewRows([]string{"status", "chat_rate", "voice_rate", "video_rate"}).
				AddRow("ACTIVE", "10", nil, nil))

		mock.ExpectBegin()

		mock.ExpectExec("INSERT INTO consultation_sessions").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("SELECT account_id, balance, version, updated_at FROM accounts WHERE account_id = \\$1 FOR UPDATE").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "updated_at"}).
				AddRow("user1", "100", 1, time.Now()))

		mock.ExpectRollback()

		_, err := service.Book(context.Background(), "user1", BookRequest{
			AstrologerID:    "astro1",
			Type:            models.SessionTypeChat,
			EstimateMinutes: 15,
		})
		assert.ErrorIs(t, err, models.ErrInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cannot book yourself", func(t *testing.T) {
		_, err := service.Book(context.Background(), "astro1", BookRequest{
			AstrologerID:    "astro1",
			Type:            models.SessionTypeChat,
			EstimateMinutes: 15,
		})
		assert.Error(t, err)
	})

	t.Run("rate not configured for requested type", func(t *testing.T) {
		mock.ExpectQuery("SELECT status, chat_rate, voice_rate, video_rate FROM astrologers WHERE astrologer_id = \\$1").
			WithArgs("astro1").
			WillReturnRows(sqlmock.NewRows([]string{"status", "chat_rate", "voice_rate", "video_rate"}).
				AddRow("ACTIVE", "10", nil, nil))

		_, err := service.Book(context.Background(), "user1", BookRequest{
			AstrologerID:    "astro1",
			Type:            models.SessionTypeVideo,
			EstimateMinutes: 15,
		})
		assert.ErrorIs(t, err, models.ErrRateNotConfigured)
	})
}

func TestConsultationService_Accept(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewConsultationService(db, NewWalletLedgerService(db),
		NewRateResolver(db), NewChannelService(nil, 0))

	t.Run("pending to confirmed", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStatePending)))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE consultation_sessions SET state").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		session, err := service.Accept("astro1", "sess-1")
		assert.NoError(t, err)
		assert.Equal(t, models.SessionStateConfirmed, session.State)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("only the booked astrologer may accept", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStatePending)))

		_, err := service.Accept("astro2", "sess-1")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("cannot accept a cancelled session", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStateCancelled)))

		_, err := service.Accept("astro1", "sess-1")
		ste, ok := models.IsInvalidTransition(err)
		assert.True(t, ok)
		assert.Equal(t, models.SessionStateCancelled, ste.Current)
	})
}

func TestConsultationService_Cancel(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewConsultationService(db, NewWalletLedgerService(db),
		NewRateResolver(db), NewChannelService(nil, 0))

	t.Run("refunds the full booking debit", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStateConfirmed)))

		mock.ExpectBegin()

		mock.ExpectExec("UPDATE consultation_sessions SET state").
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectQuery("SELECT account_id, balance, version, updated_at FROM accounts WHERE account_id = \\$1 FOR UPDATE").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "updated_at"}).
				AddRow("user1", "50", 2, time.Now()))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), "user1", models.EntryDirectionCredit, decimal.NewFromInt(150),
				models.ReasonRefundCredit, "sess-1", nil, decimal.NewFromInt(200), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(decimal.NewFromInt(200), sqlmock.AnyArg(), "user1", 2).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		result, err := service.Cancel("user1", "sess-1")
		assert.NoError(t, err)
		assert.Equal(t, models.SessionStateCancelled, result.Session.State)
		assert.True(t, result.RefundAmount.Equal(decimal.NewFromInt(150)))
		assert.True(t, result.WalletBalanceAfter.Equal(decimal.NewFromInt(200)))
		assert.Equal(t, models.CancelledByUser, *result.Session.CancelledBy)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second cancel does not refund again", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStateCancelled)))

		_, err := service.Cancel("user1", "sess-1")
		ste, ok := models.IsInvalidTransition(err)
		assert.True(t, ok)
		assert.Equal(t, models.SessionStateCancelled, ste.Current)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("losing the transition race applies no refund", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStateConfirmed)))

		mock.ExpectBegin()

		// Another transition committed between the read and this update.
		mock.ExpectExec("UPDATE consultation_sessions SET state").
			WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectRollback()

		_, err := service.Cancel("user1", "sess-1")
		assert.ErrorIs(t, err, models.ErrStateConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("only a party may cancel", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStateConfirmed)))

		_, err := service.Cancel("stranger", "sess-1")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})
}

func TestConsultationService_Start(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewConsultationService(db, NewWalletLedgerService(db),
		NewRateResolver(db), NewChannelService(nil, 0))

	t.Run("confirmed to in_progress", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStateConfirmed)))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE consultation_sessions SET state").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		session, err := service.Start("user1", "sess-1")
		assert.NoError(t, err)
		assert.Equal(t, models.SessionStateInProgress, session.State)
		assert.NotNil(t, session.StartedAt)
	})

	t.Run("cannot start a completed session", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStateCompleted)))

		_, err := service.Start("user1", "sess-1")
		_, ok := models.IsInvalidTransition(err)
		assert.True(t, ok)
	})
}

func TestConsultationService_End(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewConsultationService(db, NewWalletLedgerService(db),
		NewRateResolver(db), NewChannelService(nil, 0))

	expectUserRefund := func(amount, newBalance decimal.Decimal) {
		mock.ExpectQuery("SELECT account_id, balance, version, updated_at FROM accounts WHERE account_id = \\$1 FOR UPDATE").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "updated_at"}).
				AddRow("user1", "50", 2, time.Now()))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), "user1", models.EntryDirectionCredit, amount,
				models.ReasonRefundCredit, "sess-1", nil, newBalance, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(newBalance, sqlmock.AnyArg(), "user1", 2).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	expectAstrologerEarning := func(amount, newBalance decimal.Decimal) {
		mock.ExpectQuery("SELECT account_id, balance, version, updated_at FROM accounts WHERE account_id = \\$1 FOR UPDATE").
			WithArgs("astro1").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "updated_at"}).
				AddRow("astro1", "0", 1, time.Now()))

		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), "astro1", models.EntryDirectionCredit, amount,
				models.ReasonEarningCredit, "sess-1", nil, newBalance, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(newBalance, sqlmock.AnyArg(), "astro1", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	t.Run("shorter session refunds the unused minutes", func(t *testing.T) {
		session := testSession(models.SessionStateInProgress)
		startedAt := time.Now().Add(-10 * time.Minute)
		session.StartedAt = &startedAt

		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(session))

		mock.ExpectBegin()

		mock.ExpectExec("UPDATE consultation_sessions SET state").
			WillReturnResult(sqlmock.NewResult(0, 1))

		// 10 of 15 estimated minutes used: refund 50, credit 100. The
		// astrologer account sorts first, so it is locked first.
		expectAstrologerEarning(decimal.NewFromInt(100), decimal.NewFromInt(100))
		expectUserRefund(decimal.NewFromInt(50), decimal.NewFromInt(100))

		mock.ExpectCommit()

		result, err := service.End("user1", "sess-1", nil)
		assert.NoError(t, err)
		assert.Equal(t, models.SessionStateCompleted, result.Session.State)
		assert.Equal(t, 10, result.Session.DurationMinutes)
		assert.True(t, result.Session.TotalAmount.Equal(decimal.NewFromInt(100)))
		assert.True(t, result.RefundAmount.Equal(decimal.NewFromInt(50)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("settlement locks accounts in id order", func(t *testing.T) {
		// Reversed lexical order: the user account sorts before the
		// astrologer account, so the refund entry must come first.
		session := testSession(models.SessionStateInProgress)
		session.UserID = "alice"
		session.AstrologerID = "zodiac"
		startedAt := time.Now().Add(-10 * time.Minute)
		session.StartedAt = &startedAt

		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(session))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE consultation_sessions SET state").
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectQuery("SELECT account_id, balance, version, updated_at FROM accounts WHERE account_id = \\$1 FOR UPDATE").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "updated_at"}).
				AddRow("alice", "50", 2, time.Now()))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), "alice", models.EntryDirectionCredit, decimal.NewFromInt(50),
				models.ReasonRefundCredit, "sess-1", nil, decimal.NewFromInt(100), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(decimal.NewFromInt(100), sqlmock.AnyArg(), "alice", 2).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("SELECT account_id, balance, version, updated_at FROM accounts WHERE account_id = \\$1 FOR UPDATE").
			WithArgs("zodiac").
			WillReturnRows(sqlmock.NewRows([]string{"account_id", "balance", "version", "updated_at"}).
				AddRow("zodiac", "0", 1, time.Now()))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), "zodiac", models.EntryDirectionCredit, decimal.NewFromInt(100),
				models.ReasonEarningCredit, "sess-1", nil, decimal.NewFromInt(100), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs(decimal.NewFromInt(100), sqlmock.AnyArg(), "zodiac", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		result, err := service.End("alice", "sess-1", nil)
		assert.NoError(t, err)
		assert.True(t, result.RefundAmount.Equal(decimal.NewFromInt(50)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("overrun is capped at the booking debit", func(t *testing.T) {
		session := testSession(models.SessionStateInProgress)
		startedAt := time.Now().Add(-20 * time.Minute)
		session.StartedAt = &startedAt

		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(session))

		mock.ExpectBegin()

		mock.ExpectExec("UPDATE consultation_sessions SET state").
			WillReturnResult(sqlmock.NewResult(0, 1))

		// 20 minutes at rate 10 would be 200, but only 150 was authorized.
		// No refund entry; the astrologer is credited the capped amount.
		expectAstrologerEarning(decimal.NewFromInt(150), decimal.NewFromInt(150))

		mock.ExpectCommit()

		result, err := service.End("astro1", "sess-1", nil)
		assert.NoError(t, err)
		assert.Equal(t, 20, result.Session.DurationMinutes)
		assert.True(t, result.Session.TotalAmount.Equal(decimal.NewFromInt(150)))
		assert.True(t, result.RefundAmount.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("notes from the user are discarded", func(t *testing.T) {
		session := testSession(models.SessionStateInProgress)
		startedAt := time.Now().Add(-15 * time.Minute)
		session.StartedAt = &startedAt

		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(session))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE consultation_sessions SET state").
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectAstrologerEarning(decimal.NewFromInt(150), decimal.NewFromInt(150))
		mock.ExpectCommit()

		notes := "user should not set this"
		result, err := service.End("user1", "sess-1", &notes)
		assert.NoError(t, err)
		assert.Nil(t, result.Session.AstrologerNotes)
	})

	t.Run("ending twice fails on the second attempt", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStateCompleted)))

		_, err := service.End("user1", "sess-1", nil)
		ste, ok := models.IsInvalidTransition(err)
		assert.True(t, ok)
		assert.Equal(t, models.SessionStateCompleted, ste.Current)
	})

	t.Run("losing the race to cancel settles nothing", func(t *testing.T) {
		session := testSession(models.SessionStateInProgress)
		startedAt := time.Now().Add(-10 * time.Minute)
		session.StartedAt = &startedAt

		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(session))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE consultation_sessions SET state").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := service.End("user1", "sess-1", nil)
		assert.ErrorIs(t, err, models.ErrStateConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConsultationService_Review(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewConsultationService(db, NewWalletLedgerService(db),
		NewRateResolver(db), NewChannelService(nil, 0))

	t.Run("user reviews a completed session", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStateCompleted)))

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE consultation_sessions SET state").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		review := "very insightful"
		session, err := service.Review("user1", "sess-1", 5, &review)
		assert.NoError(t, err)
		assert.Equal(t, 5, *session.UserRating)
	})

	t.Run("astrologer cannot review", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStateCompleted)))

		_, err := service.Review("astro1", "sess-1", 5, nil)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("cannot review an unfinished session", func(t *testing.T) {
		mock.ExpectQuery(selectSessionQuery).
			WithArgs("sess-1").
			WillReturnRows(testSessionRows(testSession(models.SessionStateInProgress)))

		_, err := service.Review("user1", "sess-1", 4, nil)
		_, ok := models.IsInvalidTransition(err)
		assert.True(t, ok)
	})
}

func TestRoundMinutes(t *testing.T) {
	assert.Equal(t, 0, roundMinutes(-time.Minute))
	assert.Equal(t, 0, roundMinutes(29*time.Second))
	assert.Equal(t, 1, roundMinutes(30*time.Second))
	assert.Equal(t, 10, roundMinutes(10*time.Minute+14*time.Second))
	assert.Equal(t, 11, roundMinutes(10*time.Minute+45*time.Second))
}
