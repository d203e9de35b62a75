package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 4, cfg.BonusWorkers)
	assert.Equal(t, 1000, cfg.ReportMaxLimit)
	assert.Zero(t, cfg.ReportCacheTTL)
	assert.Equal(t, "es-CL", cfg.ExportLocale)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisOptions().Addr)
	assert.Equal(t, "127.0.0.1:6379", cfg.AsynqRedisOpt().Addr)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	base := Config{JWTSecret: "secret", BonusWorkers: 4, ReportMaxLimit: 1000, RateLimitPerMinute: 60}
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"short production secret": func(c *Config) { c.AppEnv = "production" },
		"no workers":              func(c *Config) { c.BonusWorkers = 0 },
		"limit too high":          func(c *Config) { c.ReportMaxLimit = 5000 },
		"negative ttl":            func(c *Config) { c.ReportCacheTTL = -time.Second },
		"no rate limit":           func(c *Config) { c.RateLimitPerMinute = 0 },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}
