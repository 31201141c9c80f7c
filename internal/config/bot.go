package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// BotConfig drives cmd/relay-bot. WSURL takes precedence over Addr when set.
type BotConfig struct {
	Addr     string        `env:"BOT_ADDR" envDefault:"localhost:4000"`
	WSURL    string        `env:"BOT_WS_URL"`
	Username string        `env:"BOT_USERNAME" envDefault:"bot"`
	Password string        `env:"BOT_PASSWORD" envDefault:"botpass"`
	Email    string        `env:"BOT_EMAIL" envDefault:"bot@example.com"`
	Bet      string        `env:"BOT_BET" envDefault:"1"`
	Rounds   int           `env:"BOT_ROUNDS" envDefault:"50"`
	Interval time.Duration `env:"BOT_INTERVAL" envDefault:"500ms"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
