package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session types
const (
	SessionTypeChat  = "chat"
	SessionTypeVoice = "voice"
	SessionTypeVideo = "video"
)

// ValidSessionType reports whether t is a supported consultation medium.
func ValidSessionType(t string) bool {
	return t == SessionTypeChat || t == SessionTypeVoice || t == SessionTypeVideo
}

// Session states. Transitions are monotonic: pending -> confirmed ->
// in_progress -> completed, with cancellation allowed from pending and
// confirmed. Completed, cancelled and expired are terminal. Expired is
// reserved for a future pending-timeout sweep and is never set today.
const (
	SessionStatePending    = "pending"
	SessionStateConfirmed  = "confirmed"
	SessionStateInProgress = "in_progress"
	SessionStateCompleted  = "completed"
	SessionStateCancelled  = "cancelled"
	SessionStateExpired    = "expired"
)

// Cancellation actors, recorded so a provider rejection is distinguishable
// from a user cancellation.
const (
	CancelledByUser       = "user"
	CancelledByAstrologer = "astrologer"
)

// TerminalState reports whether no further transition may leave state.
func TerminalState(state string) bool {
	return state == SessionStateCompleted || state == SessionStateCancelled || state == SessionStateExpired
}

// ConsultationSession is a booked consultation between a user and an
// astrologer. RatePerMinute is snapshotted at booking and is immune to later
// rate changes; TotalAmount is finalized exactly once, on End.
type ConsultationSession struct {
	SessionID       string          `json:"session_id" db:"session_id"`
	UserID          string          `json:"user_id" db:"user_id"`
	AstrologerID    string          `json:"astrologer_id" db:"astrologer_id"`
	Type            string          `json:"type" db:"type"`
	State           string          `json:"state" db:"state"`
	RatePerMinute   decimal.Decimal `json:"rate_per_minute" db:"rate_per_minute"`
	EstimateMinutes int             `json:"estimate_minutes" db:"estimate_minutes"`
	AmountDebited   decimal.Decimal `json:"amount_debited" db:"amount_debited"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	DurationMinutes int             `json:"duration_minutes" db:"duration_minutes"`
	ChannelToken    string          `json:"channel_token" db:"channel_token"`
	CancelledBy     *string         `json:"cancelled_by,omitempty" db:"cancelled_by"`
	UserRating      *int            `json:"user_rating,omitempty" db:"user_rating"`
	UserReview      *string         `json:"user_review,omitempty" db:"user_review"`
	AstrologerNotes *string         `json:"astrologer_notes,omitempty" db:"astrologer_notes"`
	ScheduledAt     time.Time       `json:"scheduled_at" db:"scheduled_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty" db:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// IsParty reports whether accountID belongs to either side of the session.
func (s *ConsultationSession) IsParty(accountID string) bool {
	return s.UserID == accountID || s.AstrologerID == accountID
}

// UserSessionView is the user-facing projection of a session. The astrologer's
// private notes are never included here.
type UserSessionView struct {
	SessionID       string          `json:"sessionId"`
	AstrologerID    string          `json:"astrologerId"`
	Type            string          `json:"type"`
	State           string          `json:"state"`
	RatePerMinute   decimal.Decimal `json:"ratePerMinute"`
	AmountDebited   decimal.Decimal `json:"amountDebited"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DurationMinutes int             `json:"durationMinutes"`
	ChannelToken    string          `json:"channelToken,omitempty"`
	UserRating      *int            `json:"rating,omitempty"`
	UserReview      *string         `json:"review,omitempty"`
	ScheduledAt     time.Time       `json:"scheduledAt"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	EndedAt         *time.Time      `json:"endedAt,omitempty"`
}

// AstrologerSessionView is the astrologer-facing projection. It exposes the
// session notes but not the user's wallet effects beyond the earned amount.
type AstrologerSessionView struct {
	SessionID       string          `json:"sessionId"`
	UserID          string          `json:"userId"`
	Type            string          `json:"type"`
	State           string          `json:"state"`
	RatePerMinute   decimal.Decimal `json:"ratePerMinute"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DurationMinutes int             `json:"durationMinutes"`
	ChannelToken    string          `json:"channelToken,omitempty"`
	UserRating      *int            `json:"rating,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	ScheduledAt     time.Time       `json:"scheduledAt"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	EndedAt         *time.Time      `json:"endedAt,omitempty"`
}

// UserView builds the user-facing projection. The channel token is only
// surfaced while the session can still be joined.
func (s *ConsultationSession) UserView() UserSessionView {
	v := UserSessionView{
		SessionID:       s.SessionID,
		AstrologerID:    s.AstrologerID,
		Type:            s.Type,
		State:           s.State,
		RatePerMinute:   s.RatePerMinute,
		AmountDebited:   s.AmountDebited,
		TotalAmount:     s.TotalAmount,
		DurationMinutes: s.DurationMinutes,
		UserRating:      s.UserRating,
		UserReview:      s.UserReview,
		ScheduledAt:     s.ScheduledAt,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
	}
	if !TerminalState(s.State) {
		v.ChannelToken = s.ChannelToken
	}
	return v
}

// AstrologerView builds the astrologer-facing projection.
func (s *ConsultationSession) AstrologerView() AstrologerSessionView {
	v := AstrologerSessionView{
		SessionID:       s.SessionID,
		UserID:          s.UserID,
		Type:            s.Type,
		State:           s.State,
		RatePerMinute:   s.RatePerMinute,
		TotalAmount:     s.TotalAmount,
		DurationMinutes: s.DurationMinutes,
		UserRating:      s.UserRating,
		Notes:           s.AstrologerNotes,
		ScheduledAt:     s.ScheduledAt,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
	}
	if !TerminalState(s.State) {
		v.ChannelToken = s.ChannelToken
	}
	return v
}
