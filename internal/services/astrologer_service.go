package services

import (
	"database/sql"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/astroline/backend/internal/models"
)

// AstrologerService manages the provider-side profile fields the core reads:
// per-minute rates and the online/offline availability flag. Profiles are
// provisioned by the identity side; this service only mutates them.
type AstrologerService struct {
	db *sql.DB
}

func NewAstrologerService(db *sql.DB) *AstrologerService {
	return &AstrologerService{db: db}
}

// RateUpdate carries the per-type rates to set. Nil leaves a rate untouched;
// there is no way to configure a negative rate.
type RateUpdate struct {
	ChatRate  *decimal.Decimal `json:"chatRate"`
	VoiceRate *decimal.Decimal `json:"voiceRate"`
	VideoRate *decimal.Decimal `json:"videoRate"`
}

// SetRates updates the astrologer's per-minute rates. Sessions already
// booked keep their snapshotted rate.
func (s *AstrologerService) SetRates(astrologerID string, upd RateUpdate) (*models.Astrologer, error) {
	for _, rate := range []*decimal.Decimal{upd.ChatRate, upd.VoiceRate, upd.VideoRate} {
		if rate != nil && rate.Sign() < 0 {
			return nil, &NegativeRateError{}
		}
	}

	result, err := s.db.Exec(`
		UPDATE astrologers
		SET chat_rate  = COALESCE($1::numeric, chat_rate),
		    voice_rate = COALESCE($2::numeric, voice_rate),
		    video_rate = COALESCE($3::numeric, video_rate),
		    updated_at = $4
		WHERE astrologer_id = $5`,
		upd.ChatRate, upd.VoiceRate, upd.VideoRate, time.Now(), astrologerID)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, models.ErrNotFound
	}

	log.Printf("[ASTROLOGER] Rates updated for %s", astrologerID)
	return s.GetProfile(astrologerID)
}

// SetAvailability flips the online flag. Availability is an explicit profile
// command and has no effect on sessions already in flight.
func (s *AstrologerService) SetAvailability(astrologerID string, online bool) error {
	result, err := s.db.Exec(`
		UPDATE astrologers
		SET online = $1, updated_at = $2
		WHERE astrologer_id = $3`, online, time.Now(), astrologerID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrNotFound
	}

	log.Printf("[ASTROLOGER] Availability for %s set to online=%t", astrologerID, online)
	return nil
}

// GetProfile fetches the astrologer's profile.
func (s *AstrologerService) GetProfile(astrologerID string) (*models.Astrologer, error) {
	a := &models.Astrologer{}
	var chatRate, voiceRate, videoRate decimal.NullDecimal
	err := s.db.QueryRow(`
		SELECT astrologer_id, display_name, status, online, chat_rate, voice_rate, video_rate,
		       payout_bank_bic, payout_account, created_at, updated_at
		FROM astrologers
		WHERE astrologer_id = $1`, astrologerID).Scan(
		&a.AstrologerID, &a.DisplayName, &a.Status, &a.Online, &chatRate, &voiceRate, &videoRate,
		&a.PayoutBankBIC, &a.PayoutAccount, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
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
	return a, nil
}

// NegativeRateError rejects a rate below zero.
type NegativeRateError struct{}

func (e *NegativeRateError) Error() string {
	return "rates must not be negative"
}
