package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Astrologer status
const (
	AstrologerStatusActive    = "ACTIVE"
	AstrologerStatusSuspended = "SUSPENDED"
)

// Astrologer is the provider-side profile. Per-type rates are nullable: an
// unset rate means the astrologer does not offer that medium, never that it
// is free. Online is toggled by an explicit availability command.
type Astrologer struct {
	AstrologerID  string           `json:"astrologer_id" db:"astrologer_id"`
	DisplayName   string           `json:"display_name" db:"display_name"`
	Status        string           `json:"status" db:"status"`
	Online        bool             `json:"online" db:"online"`
	ChatRate      *decimal.Decimal `json:"chat_rate,omitempty" db:"chat_rate"`
	VoiceRate     *decimal.Decimal `json:"voice_rate,omitempty" db:"voice_rate"`
	VideoRate     *decimal.Decimal `json:"video_rate,omitempty" db:"video_rate"`
	PayoutBankBIC string           `json:"payout_bank_bic" db:"payout_bank_bic"`
	PayoutAccount string           `json:"payout_account" db:"payout_account"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// RateFor returns the configured per-minute rate for the session type, or
// nil when unset.
func (a *Astrologer) RateFor(sessionType string) *decimal.Decimal {
	switch sessionType {
	case SessionTypeChat:
		return a.ChatRate
	case SessionTypeVoice:
		return a.VoiceRate
	case SessionTypeVideo:
		return a.VideoRate
	}
	return nil
}
