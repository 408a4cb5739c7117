package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// ChannelService mints the opaque channel tokens handed to the external
// media transport. The token is never interpreted here: it is persisted on
// the session, cached in Redis for the transport's lookup, and optionally
// rendered as a QR image so a second device can join a voice or video
// consultation.
type ChannelService struct {
	redis    *redis.Client
	tokenTTL time.Duration
}

func NewChannelService(redisClient *redis.Client, tokenTTL time.Duration) *ChannelService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &ChannelService{
		redis:    redisClient,
		tokenTTL: tokenTTL,
	}
}

// Issue mints a channel token for the session. Redis being down is not
// fatal: the token is also persisted on the session row.
func (s *ChannelService) Issue(ctx context.Context, sessionID string) (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(raw)

	if s.redis != nil {
		key := fmt.Sprintf("channel:%s", token)
		if err := s.redis.Set(ctx, key, sessionID, s.tokenTTL).Err(); err != nil {
			return "", err
		}
	}

	return token, nil
}

// Resolve maps a channel token back to its session id.
func (s *ChannelService) Resolve(ctx context.Context, token string) (string, error) {
	if s.redis == nil {
		return "", fmt.Errorf("channel token cache unavailable")
	}

	key := fmt.Sprintf("channel:%s", token)
	sessionID, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("invalid or expired channel token")
	}
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// JoinQR renders the channel token as a base64 PNG QR image.
func (s *ChannelService) JoinQR(token string) (string, error) {
	qr, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
