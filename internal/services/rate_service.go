package services

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/astroline/backend/internal/models"
)

// RateResolver reads the per-minute consultation rate off the astrologer's
// profile. A missing rate for the requested medium is an error, never a free
// session.
type RateResolver struct {
	db *sql.DB
}

func NewRateResolver(db *sql.DB) *RateResolver {
	return &RateResolver{db: db}
}

// ResolveRate returns the per-minute rate the astrologer charges for the
// session type. The astrologer must exist and be active.
func (r *RateResolver) ResolveRate(astrologerID, sessionType string) (decimal.Decimal, error) {
	if !models.ValidSessionType(sessionType) {
		return decimal.Zero, fmt.Errorf("unknown session type %q", sessionType)
	}

	a := models.Astrologer{AstrologerID: astrologerID}
	var chatRate, voiceRate, videoRate decimal.NullDecimal
	err := r.db.QueryRow(`
		SELECT status, chat_rate, voice_rate, video_rate
		FROM astrologers
		WHERE astrologer_id = $1`, astrologerID).Scan(&a.Status, &chatRate, &voiceRate, &videoRate)
	if err == sql.ErrNoRows {
		return decimal.Zero, models.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}

	if a.Status != models.AstrologerStatusActive {
		return decimal.Zero, models.ErrAstrologerNotAvailable
	}

	if chatRate.Valid {
		a.ChatRate = &chatRate.Decimal
	}
	if voiceRate.Valid {
		a.VoiceRate = &voiceRate.Decimal
	}
	if videoRate.Valid {
		a.VideoRate = &videoRate.Decimal
	}

	rate := a.RateFor(sessionType)
	if rate == nil || rate.Sign() < 0 {
		return decimal.Zero, models.ErrRateNotConfigured
	}
	return *rate, nil
}
