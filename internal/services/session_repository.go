package services

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/astroline/backend/internal/models"
)

// SessionRepository persists consultation sessions. All state transitions go
// through UpdateIfTx, a single-statement conditional update: the WHERE clause
// carries the expected states and a zero rows-affected result means another
// transition got there first. Sessions are never deleted.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	session_id, user_id, astrologer_id, type, state, rate_per_minute,
	estimate_minutes, amount_debited, total_amount, duration_minutes,
	channel_token, cancelled_by, user_rating, user_review, astrologer_notes,
	scheduled_at, started_at, ended_at, created_at, updated_at`

// CreateTx inserts a new session within the caller's transaction.
func (r *SessionRepository) CreateTx(tx *sql.Tx, s *models.ConsultationSession) error {
	_, err := tx.Exec(`
		INSERT INTO consultation_sessions
		(session_id, user_id, astrologer_id, type, state, rate_per_minute,
		 estimate_minutes, amount_debited, total_amount, duration_minutes,
		 channel_token, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.SessionID, s.UserID, s.AstrologerID, s.Type, s.State, s.RatePerMinute,
		s.EstimateMinutes, s.AmountDebited, s.TotalAmount, s.DurationMinutes,
		s.ChannelToken, s.ScheduledAt, s.CreatedAt, s.UpdatedAt)
	return err
}

// GetByID fetches a session.
func (r *SessionRepository) GetByID(sessionID string) (*models.ConsultationSession, error) {
	return r.get(r.db.QueryRow(`
		SELECT`+sessionColumns+`
		FROM consultation_sessions
		WHERE session_id = $1`, sessionID))
}

func (r *SessionRepository) get(row *sql.Row) (*models.ConsultationSession, error) {
	s := &models.ConsultationSession{}
	err := row.Scan(
		&s.SessionID, &s.UserID, &s.AstrologerID, &s.Type, &s.State, &s.RatePerMinute,
		&s.EstimateMinutes, &s.AmountDebited, &s.TotalAmount, &s.DurationMinutes,
		&s.ChannelToken, &s.CancelledBy, &s.UserRating, &s.UserReview, &s.AstrologerNotes,
		&s.ScheduledAt, &s.StartedAt, &s.EndedAt, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SessionUpdate carries the fields a transition may set. Nil fields are left
// untouched.
type SessionUpdate struct {
	State           string
	CancelledBy     *string
	TotalAmount     *decimal.Decimal // set only when the amount is finalized
	DurationMinutes *int
	StartedAt       *time.Time
	EndedAt         *time.Time
	UserRating      *int
	UserReview      *string
	AstrologerNotes *string
}

// UpdateIfTx transitions the session to upd.State if its persisted state is
// still one of expectedStates, in a single conditional UPDATE. It returns
// models.ErrStateConflict when the row was no longer in an expected state —
// the caller lost the race and must not apply any financial effect.
func (r *SessionRepository) UpdateIfTx(tx *sql.Tx, sessionID string, expectedStates []string, upd SessionUpdate) error {
	result, err := tx.Exec(`
		UPDATE consultation_sessions
		SET state           = $1,
		    cancelled_by    = COALESCE($2, cancelled_by),
		    total_amount    = COALESCE($3::numeric, total_amount),
		    duration_minutes = COALESCE($4, duration_minutes),
		    started_at      = COALESCE($5, started_at),
		    ended_at        = COALESCE($6, ended_at),
		    user_rating     = COALESCE($7, user_rating),
		    user_review     = COALESCE($8, user_review),
		    astrologer_notes = COALESCE($9, astrologer_notes),
		    updated_at      = $10
		WHERE session_id = $11 AND state = ANY($12)`,
		upd.State, upd.CancelledBy, upd.TotalAmount, upd.DurationMinutes,
		upd.StartedAt, upd.EndedAt, upd.UserRating, upd.UserReview, upd.AstrologerNotes,
		time.Now(), sessionID, pq.Array(expectedStates))
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrStateConflict
	}
	return nil
}

// ListForUser returns the user's sessions, newest first.
func (r *SessionRepository) ListForUser(userID string, limit int) ([]models.ConsultationSession, error) {
	return r.list(`user_id`, userID, limit)
}

// ListForAstrologer returns the astrologer's sessions, newest first.
func (r *SessionRepository) ListForAstrologer(astrologerID string, limit int) ([]models.ConsultationSession, error) {
	return r.list(`astrologer_id`, astrologerID, limit)
}

func (r *SessionRepository) list(column, accountID string, limit int) ([]models.ConsultationSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT`+sessionColumns+`
		FROM consultation_sessions
		WHERE `+column+` = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.ConsultationSession{}
	for rows.Next() {
		s := models.ConsultationSession{}
		if err := rows.Scan(
			&s.SessionID, &s.UserID, &s.AstrologerID, &s.Type, &s.State, &s.RatePerMinute,
			&s.EstimateMinutes, &s.AmountDebited, &s.TotalAmount, &s.DurationMinutes,
			&s.ChannelToken, &s.CancelledBy, &s.UserRating, &s.UserReview, &s.AstrologerNotes,
			&s.ScheduledAt, &s.StartedAt, &s.EndedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
