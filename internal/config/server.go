package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type ServerConfig struct {
	ListenAddr  string `env:"RELAY_ADDR" envDefault:":4000"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`
	WSEnabled   bool   `env:"RELAY_WS_ENABLED" envDefault:"true"`
	MCPEnabled  bool   `env:"MCP_ENABLED" envDefault:"true"`

	MaxLineBytes  int           `env:"MAX_LINE_BYTES" envDefault:"4096"`
	SendQueueSize int           `env:"SEND_QUEUE_SIZE" envDefault:"64"`
	WriteTimeout  time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`

	StoreBackend   string `env:"STORE_BACKEND" envDefault:"file"`
	DataDir        string `env:"DATA_DIR" envDefault:"data"`
	PostgresDSN    string `env:"POSTGRES_DSN"`
	RedisURL       string `env:"REDIS_URL"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"relay:"`

	StartingBalance decimal.Decimal `env:"STARTING_BALANCE" envDefault:"100"`
	BigWinThreshold decimal.Decimal `env:"BIG_WIN_THRESHOLD" envDefault:"100"`

	PotPlayerCreate     bool          `env:"POT_PLAYER_CREATE" envDefault:"true"`
	PotMaxDuration      time.Duration `env:"POT_MAX_DURATION" envDefault:"24h"`
	PotSchedule         string        `env:"POT_SCHEDULE"`
	PotScheduleDuration time.Duration `env:"POT_SCHEDULE_DURATION" envDefault:"10m"`
	SnapshotSchedule    string        `env:"SNAPSHOT_SCHEDULE" envDefault:"@every 5m"`

	ArgonMemoryKB    uint32 `env:"ARGON_MEMORY_KB" envDefault:"65536"`
	ArgonIterations  uint32 `env:"ARGON_ITERATIONS" envDefault:"3"`
	ArgonParallelism uint8  `env:"ARGON_PARALLELISM" envDefault:"2"`

	EventPushEnabled     bool          `env:"EVENT_PUSH_ENABLED" envDefault:"false"`
	EventPushTargetsJSON string        `env:"EVENT_PUSH_TARGETS_JSON"`
	EventPushConfigPath  string        `env:"EVENT_PUSH_CONFIG_PATH"`
	EventPushReload      time.Duration `env:"EVENT_PUSH_CONFIG_RELOAD" envDefault:"5s"`
	EventPushWorkers     int           `env:"EVENT_PUSH_WORKERS" envDefault:"2"`
	EventPushRetryMax    int           `env:"EVENT_PUSH_RETRY_MAX" envDefault:"3"`
	EventPushRetryBase   time.Duration `env:"EVENT_PUSH_RETRY_BASE" envDefault:"500ms"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c ServerConfig) Validate() error {
	switch c.StoreBackend {
	case StoreFile:
		if c.DataDir == "" {
			return errors.New("DATA_DIR is required for the file store")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres store")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StartingBalance.IsNegative() {
		return errors.New("STARTING_BALANCE must not be negative")
	}
	if c.MaxLineBytes < 64 {
		return errors.New("MAX_LINE_BYTES must be at least 64")
	}
	if c.SendQueueSize < 1 {
		return errors.New("SEND_QUEUE_SIZE must be positive")
	}
	if c.PotMaxDuration <= 0 {
		return errors.New("POT_MAX_DURATION must be positive")
	}
	return nil
}
