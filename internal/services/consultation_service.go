package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/astroline/backend/internal/audit"
	"github.com/astroline/backend/internal/models"
)

// ConsultationService is the session state machine. Every transition is a
// conditional update on the persisted state, and every financial effect is
// written in the same database transaction as the state change: a transition
// either fully happens or leaves no trace.
type ConsultationService struct {
	db       *sql.DB
	sessions *SessionRepository
	ledger   *WalletLedgerService
	rates    *RateResolver
	channels *ChannelService
	audit    *audit.Logger
}

func NewConsultationService(db *sql.DB, ledger *WalletLedgerService, rates *RateResolver, channels *ChannelService) *ConsultationService {
	return &ConsultationService{
		db:       db,
		sessions: NewSessionRepository(db),
		ledger:   ledger,
		rates:    rates,
		channels: channels,
		audit:    audit.NewLogger(),
	}
}

// BookRequest is the user's booking input.
type BookRequest struct {
	AstrologerID    string     `json:"astrologerId" validate:"required"`
	Type            string     `json:"type" validate:"required,oneof=chat voice video"`
	EstimateMinutes int        `json:"estimateMinutes" validate:"required,gt=0,max=480"`
	ScheduledAt     *time.Time `json:"scheduledAt"`
}

// BookResult carries everything the booking response needs.
type BookResult struct {
	Session            *models.ConsultationSession
	WalletBalanceAfter decimal.Decimal
}

// Book creates a pending session and debits the full estimated amount from
// the user's wallet up front. The debit is a hold disguised as a charge: the
// cancellation and settlement paths refund whatever turns out to be unused.
func (s *ConsultationService) Book(ctx context.Context, userID string, req BookRequest) (*BookResult, error) {
	if userID == req.AstrologerID {
		return nil, fmt.Errorf("cannot book a consultation with yourself")
	}

	rate, err := s.rates.ResolveRate(req.AstrologerID, req.Type)
	if err != nil {
		return nil, err
	}

	totalAmount := rate.Mul(decimal.NewFromInt(int64(req.EstimateMinutes)))

	now := time.Now()
	scheduledAt := now
	if req.ScheduledAt != nil {
		scheduledAt = *req.ScheduledAt
	}

	session := &models.ConsultationSession{
		SessionID:       uuid.New().String(),
		UserID:          userID,
		AstrologerID:    req.AstrologerID,
		Type:            req.Type,
		State:           models.SessionStatePending,
		RatePerMinute:   rate,
		EstimateMinutes: req.EstimateMinutes,
		AmountDebited:   totalAmount,
		TotalAmount:     totalAmount,
		ScheduledAt:     scheduledAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	session.ChannelToken, err = s.channels.Issue(ctx, session.SessionID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.sessions.CreateTx(tx, session); err != nil {
		return nil, err
	}

	balanceAfter := decimal.Zero
	if totalAmount.Sign() > 0 {
		entry, err := s.ledger.AppendTx(tx, userID, models.EntryDirectionDebit, totalAmount,
			models.ReasonBookingDebit, &session.SessionID, nil)
		if err != nil {
			s.audit.LogError(session.SessionID, userID, err)
			return nil, err
		}
		balanceAfter = entry.Balance
	} else if balanceAfter, err = s.ledger.GetBalance(userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.audit.LogTransition(session.SessionID, userID, "book", "SUCCESS")
	return &BookResult{Session: session, WalletBalanceAfter: balanceAfter}, nil
}

// Accept confirms a pending session. Provider-only, no financial effect.
func (s *ConsultationService) Accept(astrologerID, sessionID string) (*models.ConsultationSession, error) {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.AstrologerID != astrologerID {
		return nil, models.ErrUnauthorized
	}
	if session.State != models.SessionStatePending {
		return nil, models.NewInvalidTransition("accept", session.State)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = s.sessions.UpdateIfTx(tx, sessionID,
		[]string{models.SessionStatePending},
		SessionUpdate{State: models.SessionStateConfirmed})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	session.State = models.SessionStateConfirmed
	s.audit.LogTransition(sessionID, astrologerID, "accept", "SUCCESS")
	return session, nil
}

// CancelResult carries the refund details of a cancellation or rejection.
type CancelResult struct {
	Session            *models.ConsultationSession
	RefundAmount       decimal.Decimal
	WalletBalanceAfter decimal.Decimal
}

// Reject cancels a pending or confirmed session on the provider's behalf and
// refunds the full booking debit.
func (s *ConsultationService) Reject(astrologerID, sessionID string) (*CancelResult, error) {
	return s.terminate(sessionID, astrologerID, models.CancelledByAstrologer)
}

// Cancel cancels a pending or confirmed session on the user's behalf and
// refunds the full booking debit.
func (s *ConsultationService) Cancel(userID, sessionID string) (*CancelResult, error) {
	return s.terminate(sessionID, userID, models.CancelledByUser)
}

// terminate moves the session to cancelled and issues exactly one refund.
// The conditional update is what makes a second cancel attempt fail instead
// of refunding twice.
func (s *ConsultationService) terminate(sessionID, callerID, actor string) (*CancelResult, error) {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}

	switch actor {
	case models.CancelledByUser:
		if session.UserID != callerID {
			return nil, models.ErrUnauthorized
		}
	case models.CancelledByAstrologer:
		if session.AstrologerID != callerID {
			return nil, models.ErrUnauthorized
		}
	}

	if session.State != models.SessionStatePending && session.State != models.SessionStateConfirmed {
		return nil, models.NewInvalidTransition("cancel", session.State)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cancelledBy := actor
	err = s.sessions.UpdateIfTx(tx, sessionID,
		[]string{models.SessionStatePending, models.SessionStateConfirmed},
		SessionUpdate{State: models.SessionStateCancelled, CancelledBy: &cancelledBy})
	if err != nil {
		return nil, err
	}

	refund := session.AmountDebited
	balanceAfter := decimal.Zero
	if refund.Sign() > 0 {
		entry, err := s.ledger.AppendTx(tx, session.UserID, models.EntryDirectionCredit, refund,
			models.ReasonRefundCredit, &sessionID, nil)
		if err != nil {
			s.audit.LogError(sessionID, session.UserID, err)
			return nil, err
		}
		balanceAfter = entry.Balance
	} else if balanceAfter, err = s.ledger.GetBalance(session.UserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	session.State = models.SessionStateCancelled
	session.CancelledBy = &cancelledBy
	s.audit.LogTransition(sessionID, callerID, "cancel", "SUCCESS")
	return &CancelResult{Session: session, RefundAmount: refund, WalletBalanceAfter: balanceAfter}, nil
}

// Start moves the session to in_progress and records the clock that End will
// later bill against. Either party may start. No financial effect.
func (s *ConsultationService) Start(callerID, sessionID string) (*models.ConsultationSession, error) {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParty(callerID) {
		return nil, models.ErrUnauthorized
	}
	if session.State != models.SessionStatePending && session.State != models.SessionStateConfirmed {
		return nil, models.NewInvalidTransition("start", session.State)
	}

	now := time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = s.sessions.UpdateIfTx(tx, sessionID,
		[]string{models.SessionStatePending, models.SessionStateConfirmed},
		SessionUpdate{State: models.SessionStateInProgress, StartedAt: &now})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	session.State = models.SessionStateInProgress
	session.StartedAt = &now
	s.audit.LogTransition(sessionID, callerID, "start", "SUCCESS")
	return session, nil
}

// EndResult carries the settled session and its financial outcome.
type EndResult struct {
	Session      *models.ConsultationSession
	RefundAmount decimal.Decimal
}

// End completes an in-progress session and settles it against the booking
// debit. The elapsed time is rounded to whole minutes; if the recomputed
// amount undershoots the debit the difference is refunded, and if it
// overshoots the total is capped at the debit — the user is never charged
// beyond what was pre-authorized. The astrologer is credited the final
// amount in the same transaction.
func (s *ConsultationService) End(callerID, sessionID string, notes *string) (*EndResult, error) {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParty(callerID) {
		return nil, models.ErrUnauthorized
	}
	if session.State != models.SessionStateInProgress {
		return nil, models.NewInvalidTransition("end", session.State)
	}
	if session.StartedAt == nil {
		return nil, fmt.Errorf("session %s is in_progress without a start time", sessionID)
	}

	now := time.Now()
	minutes := roundMinutes(now.Sub(*session.StartedAt))
	actual := session.RatePerMinute.Mul(decimal.NewFromInt(int64(minutes)))

	final := actual
	if actual.GreaterThan(session.AmountDebited) {
		// Never collect more than was pre-authorized at booking.
		final = session.AmountDebited
		s.audit.LogSettlementGap(sessionID, session.UserID, session.AmountDebited, actual)
		log.Printf("[CONSULTATION] Session %s ran over its estimate: actual %s, capped at %s",
			sessionID, actual, session.AmountDebited)
	}
	refund := session.AmountDebited.Sub(final)

	// Keep astrologer notes out of the user-initiated path.
	if callerID != session.AstrologerID {
		notes = nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = s.sessions.UpdateIfTx(tx, sessionID,
		[]string{models.SessionStateInProgress},
		SessionUpdate{
			State:           models.SessionStateCompleted,
			TotalAmount:     &final,
			DurationMinutes: &minutes,
			EndedAt:         &now,
			AstrologerNotes: notes,
		})
	if err != nil {
		return nil, err
	}

	creditRefund := func() error {
		if refund.Sign() <= 0 {
			return nil
		}
		if _, err := s.ledger.AppendTx(tx, session.UserID, models.EntryDirectionCredit, refund,
			models.ReasonRefundCredit, &sessionID, nil); err != nil {
			s.audit.LogError(sessionID, session.UserID, err)
			return err
		}
		return nil
	}
	creditEarning := func() error {
		if final.Sign() <= 0 {
			return nil
		}
		if _, err := s.ledger.AppendTx(tx, session.AstrologerID, models.EntryDirectionCredit, final,
			models.ReasonEarningCredit, &sessionID, nil); err != nil {
			s.audit.LogError(sessionID, session.AstrologerID, err)
			return err
		}
		return nil
	}

	// Lock accounts in consistent order to prevent deadlocks
	first, second := creditRefund, creditEarning
	if session.AstrologerID < session.UserID {
		first, second = creditEarning, creditRefund
	}
	if err := first(); err != nil {
		return nil, err
	}
	if err := second(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	session.State = models.SessionStateCompleted
	session.TotalAmount = final
	session.DurationMinutes = minutes
	session.EndedAt = &now
	if notes != nil {
		session.AstrologerNotes = notes
	}
	s.audit.LogTransition(sessionID, callerID, "end", "SUCCESS")
	return &EndResult{Session: session, RefundAmount: refund}, nil
}

// Review attaches the user's rating and review to a completed session.
// Overwrite semantics: the latest review wins.
func (s *ConsultationService) Review(userID, sessionID string, rating int, review *string) (*models.ConsultationSession, error) {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, models.ErrUnauthorized
	}
	if session.State != models.SessionStateCompleted {
		return nil, models.NewInvalidTransition("review", session.State)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	err = s.sessions.UpdateIfTx(tx, sessionID,
		[]string{models.SessionStateCompleted},
		SessionUpdate{State: models.SessionStateCompleted, UserRating: &rating, UserReview: review})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	session.UserRating = &rating
	session.UserReview = review
	return session, nil
}

// Get returns a session visible to the caller.
func (s *ConsultationService) Get(callerID, sessionID string) (*models.ConsultationSession, error) {
	session, err := s.sessions.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParty(callerID) {
		return nil, models.ErrUnauthorized
	}
	return session, nil
}

// ListForUser returns the caller's bookings.
func (s *ConsultationService) ListForUser(userID string, limit int) ([]models.ConsultationSession, error) {
	return s.sessions.ListForUser(userID, limit)
}

// ListForAstrologer returns the caller's consultations.
func (s *ConsultationService) ListForAstrologer(astrologerID string, limit int) ([]models.ConsultationSession, error) {
	return s.sessions.ListForAstrologer(astrologerID, limit)
}

// roundMinutes rounds a session duration to the nearest whole minute.
func roundMinutes(d time.Duration) int {
	if d < 0 {
		d = 0
	}
	return int((d + 30*time.Second) / time.Minute)
}
