// Package config loads the funnel bot configuration: an optional .env file,
// the YAML file and the environment overlay, in that order of precedence
// from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/funnelbot/core/config"
	coredatabase "github.com/m3rciful/funnelbot/core/database"
	"github.com/m3rciful/funnelbot/internal/funnel"
	"github.com/m3rciful/funnelbot/internal/messages"
)

const (
	// StorePostgres keeps funnel records in PostgreSQL.
	StorePostgres = "postgres"
	// StoreMemory keeps funnel records in process memory.
	StoreMemory = "memory"
)

const (
	defaultCodeWord             = "Антистресс"
	defaultDocumentPath         = "Blue Playful Coping Skills Checklist Worksheet A4.pdf"
	defaultOfferDelaySeconds    = 60
	defaultWarmup1Hours         = 24
	defaultWarmup2Hours         = 48
	defaultCheckIntervalSeconds = 3600
)

// FunnelConfig holds the funnel parameters.
type FunnelConfig struct {
	CodeWord     string `yaml:"code_word" envconfig:"CODE_WORD"`
	DocumentPath string `yaml:"document_path" envconfig:"PDF_FILE_PATH"`

	// OfferDelaySeconds defaults to 60 when unset; 0 sends the offer at once.
	OfferDelaySeconds    *int `yaml:"offer_delay_seconds" envconfig:"OFFER_DELAY_SECONDS"`
	Warmup1Hours         int  `yaml:"warmup1_hours" envconfig:"WARMUP_1_HOURS"`
	Warmup2Hours         int  `yaml:"warmup2_hours" envconfig:"WARMUP_2_HOURS"`
	CheckIntervalSeconds int  `yaml:"check_interval_seconds" envconfig:"CHECK_INTERVAL_SECONDS"`

	// ContactCapture defaults to true when unset.
	ContactCapture *bool `yaml:"contact_capture" envconfig:"FUNNEL_CONTACT_CAPTURE"`

	AdminID       int64  `yaml:"admin_id" envconfig:"ADMIN_ID"`
	AdminUsername string `yaml:"admin_username" envconfig:"ADMIN_USERNAME"`

	// Store is "postgres" or "memory"; empty picks postgres when a database is configured.
	Store string `yaml:"store" envconfig:"FUNNEL_STORE"`

	BroadcastPauseMS int `yaml:"broadcast_pause_ms" envconfig:"BROADCAST_PAUSE_MS"`
	SendRetries      int `yaml:"send_retries" envconfig:"SEND_RETRIES"`
}

// OfferDelay is the delay between document delivery and the offer.
func (f FunnelConfig) OfferDelay() time.Duration {
	if f.OfferDelaySeconds == nil {
		return defaultOfferDelaySeconds * time.Second
	}
	return time.Duration(*f.OfferDelaySeconds) * time.Second
}

// Warmup1 is the silence threshold for the first warm-up.
func (f FunnelConfig) Warmup1() time.Duration {
	return time.Duration(f.Warmup1Hours) * time.Hour
}

// Warmup2 is the silence threshold for the second warm-up, counted from the first.
func (f FunnelConfig) Warmup2() time.Duration {
	return time.Duration(f.Warmup2Hours) * time.Hour
}

// CheckInterval is the warm-up scanner period.
func (f FunnelConfig) CheckInterval() time.Duration {
	return time.Duration(f.CheckIntervalSeconds) * time.Second
}

// BroadcastPause is the delay between broadcast recipients.
func (f FunnelConfig) BroadcastPause() time.Duration {
	return time.Duration(f.BroadcastPauseMS) * time.Millisecond
}

// Policy derives the funnel policy.
func (f FunnelConfig) Policy() funnel.Policy {
	p := funnel.DefaultPolicy()
	if f.ContactCapture != nil {
		p.ContactCapture = *f.ContactCapture
	}
	return p
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Funnel   FunnelConfig        `yaml:"funnel"`
	Messages messages.Texts      `yaml:"messages"`
}

// CoreConfig exposes the embedded core section to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads .env (when present), the YAML file at path and the environment.
// A missing YAML file is not an error: every setting has an env name.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	// Contact shares are never rate limited.
	if !slices.Contains(cfg.RateLimit.ExcludeUpdates, coreconfig.UpdateContact) {
		cfg.RateLimit.ExcludeUpdates = append(cfg.RateLimit.ExcludeUpdates, coreconfig.UpdateContact)
	}

	f := &cfg.Funnel
	f.CodeWord = strings.TrimSpace(f.CodeWord)
	if f.CodeWord == "" {
		f.CodeWord = defaultCodeWord
	}
	if f.DocumentPath == "" {
		f.DocumentPath = defaultDocumentPath
	}
	if f.OfferDelaySeconds == nil {
		delay := defaultOfferDelaySeconds
		f.OfferDelaySeconds = &delay
	}
	if f.Warmup1Hours == 0 {
		f.Warmup1Hours = defaultWarmup1Hours
	}
	if f.Warmup2Hours == 0 {
		f.Warmup2Hours = defaultWarmup2Hours
	}
	if f.CheckIntervalSeconds == 0 {
		f.CheckIntervalSeconds = defaultCheckIntervalSeconds
	}
	switch {
	case *f.OfferDelaySeconds < 0:
		return fmt.Errorf("config: funnel.offer_delay_seconds must be >= 0")
	case f.Warmup1Hours < 0 || f.Warmup2Hours < 0:
		return fmt.Errorf("config: funnel warm-up hours must be >= 0")
	case f.CheckIntervalSeconds < 0:
		return fmt.Errorf("config: funnel.check_interval_seconds must be >= 0")
	case f.BroadcastPauseMS < 0:
		return fmt.Errorf("config: funnel.broadcast_pause_ms must be >= 0")
	}

	// ADMIN_ID and TELEGRAM_ADMIN_ID name the same person.
	if f.AdminID == 0 {
		f.AdminID = cfg.Telegram.AdminID
	}
	if cfg.Telegram.AdminID == 0 {
		cfg.Telegram.AdminID = f.AdminID
	}
	f.AdminUsername = strings.TrimPrefix(strings.TrimSpace(f.AdminUsername), "@")

	f.Store = strings.ToLower(strings.TrimSpace(f.Store))
	switch f.Store {
	case "":
		f.Store = StoreMemory
		if cfg.Database.Enabled() {
			f.Store = StorePostgres
		}
	case StoreMemory:
	case StorePostgres:
		if !cfg.Database.Enabled() {
			return fmt.Errorf("config: funnel.store is postgres but database.host/name are empty")
		}
	default:
		return fmt.Errorf("config: invalid funnel.store %q; allowed: postgres, memory", f.Store)
	}
	cfg.Database = cfg.Database.WithDefaults()

	cfg.Messages = cfg.Messages.WithDefaults()
	return nil
}

// UsesDatabase reports whether the bootstrap should connect and migrate.
func (c *Config) UsesDatabase() bool {
	return c.Funnel.Store == StorePostgres
}
