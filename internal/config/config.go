package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/safeguard.db"`
	RedisURL string     `env:"REDIS_URL" envDefault:""`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// JWTSecret is shared with the authentication collaborator that issues
	// the bearer tokens this service validates.
	JWTSecret string `env:"JWT_SECRET,required"`

	// NotifyRadiusKm bounds which responders hear about a new session.
	NotifyRadiusKm float64 `env:"NOTIFY_RADIUS_KM" envDefault:"5"`

	// PresenceTTL is the responder staleness window.
	PresenceTTL time.Duration `env:"PRESENCE_TTL" envDefault:"5m"`

	// LocationPushInterval throttles location_update fanout per responder.
	LocationPushInterval time.Duration `env:"LOCATION_PUSH_INTERVAL" envDefault:"2m"`

	// ExpoPushURL overrides the Expo endpoint (tests, staging proxies).
	ExpoPushURL string `env:"EXPO_PUSH_URL" envDefault:""`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
