package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadYAMLWithEnvOverlay(t *testing.T) {
	path := writeYAML(t, `
telegram:
  token: yaml-token
  run_mode: polling
database:
  host: localhost
  name: funnel
funnel:
  code_word: "  Спокойствие "
  offer_delay_seconds: 30
  admin_username: "@helper"
messages:
  offer: "Custom offer"
`)
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("ADMIN_ID", "777")
	t.Setenv("WARMUP_1_HOURS", "2")
	t.Setenv("FUNNEL_CONTACT_CAPTURE", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, int64(777), cfg.Funnel.AdminID)
	assert.Equal(t, int64(777), cfg.Telegram.AdminID)
	assert.Equal(t, "helper", cfg.Funnel.AdminUsername)
	assert.Equal(t, "Спокойствие", cfg.Funnel.CodeWord)
	assert.Equal(t, 30*time.Second, cfg.Funnel.OfferDelay())
	assert.Equal(t, 2*time.Hour, cfg.Funnel.Warmup1())
	assert.Equal(t, 48*time.Hour, cfg.Funnel.Warmup2())
	assert.Equal(t, time.Hour, cfg.Funnel.CheckInterval())
	assert.False(t, cfg.Funnel.Policy().ContactCapture)

	assert.Equal(t, StorePostgres, cfg.Funnel.Store)
	assert.True(t, cfg.UsesDatabase())
	assert.Equal(t, "5432", cfg.Database.Port)

	assert.Equal(t, "Custom offer", cfg.Messages.Offer)
	assert.NotEmpty(t, cfg.Messages.Warmup1)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadWithoutFileUsesEnvAndDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultCodeWord, cfg.Funnel.CodeWord)
	assert.Equal(t, StoreMemory, cfg.Funnel.Store)
	assert.False(t, cfg.UsesDatabase())
	assert.True(t, cfg.Funnel.Policy().ContactCapture)
	assert.Equal(t, []string{"contact"}, cfg.RateLimit.ExcludeUpdates)
	assert.Equal(t, time.Minute, cfg.Funnel.OfferDelay())
}

func TestZeroOfferDelayIsKept(t *testing.T) {
	path := writeYAML(t, `
funnel:
  offer_delay_seconds: 0
`)
	t.Setenv("BOT_TOKEN", "env-token")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Funnel.OfferDelaySeconds)
	assert.Zero(t, *cfg.Funnel.OfferDelaySeconds)
	assert.Zero(t, cfg.Funnel.OfferDelay())

	t.Setenv("OFFER_DELAY_SECONDS", "15")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Funnel.OfferDelay())
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]Config{
		"no token": {},
		"bad store": func() Config {
			c := Config{}
			c.Telegram.Token = "t"
			c.Funnel.Store = "redis"
			return c
		}(),
		"postgres without database": func() Config {
			c := Config{}
			c.Telegram.Token = "t"
			c.Funnel.Store = "postgres"
			return c
		}(),
		"negative delay": func() Config {
			c := Config{}
			c.Telegram.Token = "t"
			delay := -1
			c.Funnel.OfferDelaySeconds = &delay
			return c
		}(),
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Normalize(&cfg))
		})
	}
}
