package config

import (
	"os"
	"time"
)

// ConsultationConfig carries the consultation subsystem tunables.
type ConsultationConfig struct {
	ChannelTokenTTL time.Duration
}

func LoadConsultationConfig() *ConsultationConfig {
	return &ConsultationConfig{
		ChannelTokenTTL: getEnvAsDuration("CHANNEL_TOKEN_TTL", 24*time.Hour),
	}
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
