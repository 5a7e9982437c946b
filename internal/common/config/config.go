package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type Config struct {
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"anon-relay-bot"`

	Server struct {
		Port    int    `env:"PORT" envDefault:"8080"`
		Origin  string `env:"ORIGIN" envDefault:"http://localhost:3000"`
		Enabled bool   `env:"ADMIN_API_ENABLED" envDefault:"true"`
	}

	Storage struct {
		// memory keeps everything in-process; redis shares state between replicas
		Driver string `env:"STORAGE_DRIVER" envDefault:"memory"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
		Prefix   string `env:"REDIS_KEY_PREFIX" envDefault:"relay:"`
	}

	Telegram struct {
		BotToken   string        `env:"BOT_TOKEN,required,notEmpty"`
		ChannelID  string        `env:"CHANNEL_ID,required,notEmpty"`
		APIBaseURL string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
		Debug      bool          `env:"TELEGRAM_DEBUG" envDefault:"false"`
		Timeout    time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	}

	Relay struct {
		DefaultEmoji    string        `env:"DEFAULT_EMOJI" envDefault:"📨"`
		DefaultCooldown time.Duration `env:"DEFAULT_SPAM_COOLDOWN" envDefault:"10s"`
		PremiumCooldown time.Duration `env:"PREMIUM_SPAM_COOLDOWN" envDefault:"2s"`
		SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"10m"`
		MaxTextLength   int           `env:"MAX_MESSAGE_LENGTH" envDefault:"4096"`
		RiskCost        int           `env:"RISK_ADMISSION_COST" envDefault:"3"`
	}

	Limits struct {
		LongWindow  time.Duration `env:"RATE_LONG_WINDOW" envDefault:"60s"`
		LongCap     int           `env:"RATE_LONG_CAP" envDefault:"30"`
		BurstWindow time.Duration `env:"RATE_BURST_WINDOW" envDefault:"5s"`
		BurstCap    int           `env:"RATE_BURST_CAP" envDefault:"5"`
	}

	Admin struct {
		IDs         []string      `env:"ADMIN_IDS" envSeparator:","`
		Token       string        `env:"ADMIN_API_TOKEN" envDefault:""`
		InitDataTTL time.Duration `env:"INIT_DATA_TTL" envDefault:"24h"`
	}

	Payments struct {
		Enabled      bool   `env:"PAYMENTS_ENABLED" envDefault:"true"`
		DatabasePath string `env:"PAYMENTS_DB_PATH" envDefault:"payments.sqlite"`
		PriceStars   int    `env:"PREMIUM_PRICE" envDefault:"100"`
		PremiumDays  int    `env:"PREMIUM_DAYS" envDefault:"30"`
	}

	Workers struct {
		SweepInterval time.Duration `env:"PREMIUM_SWEEP_INTERVAL" envDefault:"1m"`
	}
}

// Load reads .env (if present) and the process environment into Config.
func Load() (*Config, error) {
	// .env is optional; production sets variables directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageRedis:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Limits.LongWindow <= 0 || c.Limits.BurstWindow <= 0 {
		return fmt.Errorf("rate windows must be positive")
	}
	if c.Limits.LongCap <= 0 || c.Limits.BurstCap <= 0 {
		return fmt.Errorf("rate caps must be positive")
	}
	if c.Relay.MaxTextLength <= 0 || c.Relay.MaxTextLength > 4096 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be within 1..4096")
	}
	if c.Relay.RiskCost < 1 {
		return fmt.Errorf("RISK_ADMISSION_COST must be at least 1")
	}
	if _, err := c.AdminIDs(); err != nil {
		return err
	}
	return nil
}

// AdminIDs parses ADMIN_IDS into Telegram user ids.
func (c *Config) AdminIDs() ([]int64, error) {
	ids := make([]int64, 0, len(c.Admin.IDs))
	for _, raw := range c.Admin.IDs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
