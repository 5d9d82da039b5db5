package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Defaults returns the built-in configuration, tracking the full default
// target list against the production marketplace.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Path: "./flipforce.db",
		},
		Server: ServerConfig{
			ListenAddr:  ":8080",
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		ArenaClub: ArenaClubConfig{
			BaseURL:           "https://api.arenaclub.com/v2",
			RequestTimeout:    duration{30 * time.Second},
			RequestsPerSecond: 0.5,
			DailyLimit:        20000,
			HitFeedPageSize:   50,
		},
		Tracker: TrackerConfig{
			PollInterval:      duration{2 * time.Minute},
			CorrelationWindow: duration{60 * time.Second},
			MaxConcurrent:     4,
			BackoffInitial:    duration{30 * time.Second},
			BackoffMax:        duration{10 * time.Minute},
			VerifyTiers:       []string{"Grail", "Chase"},
		},
		Targets: []TargetPack{
			{Category: "Diamond", Series: "Multi-Sport"},
			{Category: "Diamond", Series: "Pokemon"},
			{Category: "Emerald", Series: "Baseball"},
			{Category: "Emerald", Series: "Basketball"},
			{Category: "Emerald", Series: "Football"},
			{Category: "Emerald", Series: "Pokemon"},
			{Category: "Ruby", Series: "Baseball"},
			{Category: "Ruby", Series: "Basketball"},
			{Category: "Ruby", Series: "Football"},
			{Category: "Ruby", Series: "Pokemon"},
			{Category: "Gold", Series: "Baseball"},
			{Category: "Gold", Series: "Basketball"},
			{Category: "Gold", Series: "Football"},
			{Category: "Gold", Series: "Pokemon"},
			{Category: "Silver", Series: "Baseball"},
			{Category: "Silver", Series: "Basketball"},
			{Category: "Silver", Series: "Football"},
			{Category: "Silver", Series: "Pokemon"},
			{Category: "Misc.", Series: "Multi-Sport"},
			{Category: "Misc.", Series: "Pokemon"},
		},
	}
}

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FLIPFORCE_* environment variable overrides, and
// returns the final Config. An empty path skips the file and uses defaults
// plus environment overrides only. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FLIPFORCE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators adjust a deployment without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Database.Path, "FLIPFORCE_DB_PATH")
	setStr(&cfg.Server.ListenAddr, "FLIPFORCE_LISTEN_ADDR")
	setStrSlice(&cfg.Server.CORSOrigins, "FLIPFORCE_CORS_ORIGINS")

	setStr(&cfg.ArenaClub.BaseURL, "FLIPFORCE_ARENA_CLUB_BASE_URL")
	setDur(&cfg.ArenaClub.RequestTimeout, "FLIPFORCE_ARENA_CLUB_REQUEST_TIMEOUT")
	setFloat(&cfg.ArenaClub.RequestsPerSecond, "FLIPFORCE_ARENA_CLUB_REQUESTS_PER_SECOND")
	setInt(&cfg.ArenaClub.DailyLimit, "FLIPFORCE_ARENA_CLUB_DAILY_LIMIT")
	setInt(&cfg.ArenaClub.HitFeedPageSize, "FLIPFORCE_ARENA_CLUB_HIT_FEED_PAGE_SIZE")

	setDur(&cfg.Tracker.PollInterval, "FLIPFORCE_TRACKER_POLL_INTERVAL")
	setDur(&cfg.Tracker.CorrelationWindow, "FLIPFORCE_TRACKER_CORRELATION_WINDOW")
	setInt(&cfg.Tracker.MaxConcurrent, "FLIPFORCE_TRACKER_MAX_CONCURRENT")
	setDur(&cfg.Tracker.BackoffInitial, "FLIPFORCE_TRACKER_BACKOFF_INITIAL")
	setDur(&cfg.Tracker.BackoffMax, "FLIPFORCE_TRACKER_BACKOFF_MAX")
	setStrSlice(&cfg.Tracker.VerifyTiers, "FLIPFORCE_TRACKER_VERIFY_TIERS")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setStrSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDur(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
