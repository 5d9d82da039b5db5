package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("built-in defaults must validate: %v", err)
	}
	if len(cfg.Targets) == 0 {
		t.Error("defaults should track at least one target pack")
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Config{}
	cfg.Targets = []TargetPack{{Category: "Gold"}} // missing series

	err := cfg.Validate()
	if err == nil {
		t.Fatal("empty config should not validate")
	}
	msg := err.Error()
	for _, want := range []string{"database", "listen_addr", "base_url", "poll_interval", "targets[0]"} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation error should mention %q: %s", want, msg)
		}
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flipforce.toml")
	content := `
[tracker]
poll_interval = "5m"
verify_tiers = ["Grail"]

[[targets]]
category = "Gold"
series = "Baseball"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Tracker.PollInterval.Duration != 5*time.Minute {
		t.Errorf("file value should win: %v", cfg.Tracker.PollInterval.Duration)
	}
	if len(cfg.Tracker.VerifyTiers) != 1 || cfg.Tracker.VerifyTiers[0] != "Grail" {
		t.Errorf("verify tiers not loaded: %v", cfg.Tracker.VerifyTiers)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("unset fields should keep defaults, got %q", cfg.Server.ListenAddr)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("FLIPFORCE_LISTEN_ADDR", ":9999")
	t.Setenv("FLIPFORCE_TRACKER_POLL_INTERVAL", "45s")
	t.Setenv("FLIPFORCE_TRACKER_VERIFY_TIERS", "Grail, Chase ,Legendary")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("listen addr override not applied: %q", cfg.Server.ListenAddr)
	}
	if cfg.Tracker.PollInterval.Duration != 45*time.Second {
		t.Errorf("poll interval override not applied: %v", cfg.Tracker.PollInterval.Duration)
	}
	want := []string{"Grail", "Chase", "Legendary"}
	if len(cfg.Tracker.VerifyTiers) != len(want) {
		t.Fatalf("verify tiers override not applied: %v", cfg.Tracker.VerifyTiers)
	}
	for i, tier := range want {
		if cfg.Tracker.VerifyTiers[i] != tier {
			t.Errorf("tier %d: expected %q, got %q", i, tier, cfg.Tracker.VerifyTiers[i])
		}
	}
}

func TestDurationTextRoundTrip(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("expected 90s, got %v", d.Duration)
	}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != "1m30s" {
		t.Errorf("expected 1m30s, got %s", text)
	}

	if err := d.UnmarshalText([]byte("not a duration")); err == nil {
		t.Error("garbage should not parse")
	}
}
