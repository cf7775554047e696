package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN          string `env:"DATABASE_DSN,required=true"`
	RedisURL             string `env:"REDIS_URL,required=true"`
	MetaGraphBaseURL     string `env:"META_GRAPH_BASE_URL,default=https://graph.facebook.com/v19.0"`
	RateLimitPerSec      int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	BroadcastConcurrency int    `env:"BROADCAST_CONCURRENCY,default=8"`
	SendTimeoutSeconds   int    `env:"SEND_TIMEOUT_SECONDS,default=15"`
	APIPort              int    `env:"API_PORT,default=8080"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
