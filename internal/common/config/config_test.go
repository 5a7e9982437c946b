package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHANNEL_ID", "@relay")
	t.Setenv("ADMIN_IDS", "1, 2")
	t.Setenv("RATE_BURST_CAP", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, "@relay", cfg.Telegram.ChannelID)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 60*time.Second, cfg.Limits.LongWindow)
	assert.Equal(t, 30, cfg.Limits.LongCap)
	assert.Equal(t, 5*time.Second, cfg.Limits.BurstWindow)
	assert.Equal(t, 7, cfg.Limits.BurstCap)
	assert.Equal(t, "📨", cfg.Relay.DefaultEmoji)

	ids, err := cfg.AdminIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestLoad_missingRequired(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("CHANNEL_ID", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Storage.Driver = StorageMemory
		cfg.Limits.LongWindow = time.Minute
		cfg.Limits.LongCap = 30
		cfg.Limits.BurstWindow = 5 * time.Second
		cfg.Limits.BurstCap = 5
		cfg.Relay.MaxTextLength = 4096
		cfg.Relay.RiskCost = 1
		return cfg
	}

	tcases := []struct {
		name   string
		mutate func(*Config)
		err    bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "redis driver", mutate: func(c *Config) { c.Storage.Driver = StorageRedis }},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "etcd" }, err: true},
		{name: "zero burst window", mutate: func(c *Config) { c.Limits.BurstWindow = 0 }, err: true},
		{name: "negative cap", mutate: func(c *Config) { c.Limits.LongCap = -1 }, err: true},
		{name: "text limit too large", mutate: func(c *Config) { c.Relay.MaxTextLength = 5000 }, err: true},
		{name: "zero risk cost", mutate: func(c *Config) { c.Relay.RiskCost = 0 }, err: true},
		{name: "bad admin id", mutate: func(c *Config) { c.Admin.IDs = []string{"root"} }, err: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
