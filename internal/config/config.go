// Package config defines the top-level configuration for the FlipForce
// tracker and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FLIPFORCE_* environment
// variables.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	ArenaClub ArenaClubConfig `toml:"arena_club"`
	Tracker   TrackerConfig   `toml:"tracker"`
	Targets   []TargetPack    `toml:"targets"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ServerConfig holds the HTTP API listen address and CORS origins.
type ServerConfig struct {
	ListenAddr  string   `toml:"listen_addr"`
	CORSOrigins []string `toml:"cors_origins"`
}

// ArenaClubConfig holds marketplace API endpoints and client limits.
type ArenaClubConfig struct {
	BaseURL           string   `toml:"base_url"`
	RequestTimeout    duration `toml:"request_timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	DailyLimit        int      `toml:"daily_limit"`
	HitFeedPageSize   int      `toml:"hit_feed_page_size"`
}

// TrackerConfig holds the reconciliation scheduler parameters.
type TrackerConfig struct {
	PollInterval      duration `toml:"poll_interval"`
	CorrelationWindow duration `toml:"correlation_window"`
	MaxConcurrent     int      `toml:"max_concurrent"`
	BackoffInitial    duration `toml:"backoff_initial"`
	BackoffMax        duration `toml:"backoff_max"`
	// VerifyTiers lists card tiers whose disappearance requires hit-feed
	// corroboration before it may be classified sold. Disappearances in
	// other tiers are classified sold by default.
	VerifyTiers []string `toml:"verify_tiers"`
}

// TargetPack identifies one pack series to track by its marketplace
// category and series name.
type TargetPack struct {
	Category string `toml:"category"`
	Series   string `toml:"series"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding ("90s", "2m", ...).
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database: path must be set")
	}
	if c.Server.ListenAddr == "" {
		errs = append(errs, "server: listen_addr must be set")
	}
	if c.ArenaClub.BaseURL == "" {
		errs = append(errs, "arena_club: base_url must be set")
	}
	if c.ArenaClub.RequestsPerSecond <= 0 {
		errs = append(errs, "arena_club: requests_per_second must be positive")
	}
	if c.ArenaClub.HitFeedPageSize <= 0 {
		errs = append(errs, "arena_club: hit_feed_page_size must be positive")
	}
	if c.Tracker.PollInterval.Duration <= 0 {
		errs = append(errs, "tracker: poll_interval must be positive")
	}
	if c.Tracker.CorrelationWindow.Duration <= 0 {
		errs = append(errs, "tracker: correlation_window must be positive")
	}
	if c.Tracker.MaxConcurrent <= 0 {
		errs = append(errs, "tracker: max_concurrent must be positive")
	}
	if c.Tracker.BackoffInitial.Duration <= 0 || c.Tracker.BackoffMax.Duration < c.Tracker.BackoffInitial.Duration {
		errs = append(errs, "tracker: backoff_initial must be positive and no greater than backoff_max")
	}
	for i, t := range c.Targets {
		if t.Category == "" || t.Series == "" {
			errs = append(errs, fmt.Sprintf("targets[%d]: category and series must both be set", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
