package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "PORT", "ORDER_POLL_ATTEMPTS", "ORDER_POLL_DELAY",
		"LIVE_CACHE_TTL", "CACHE_MAX_ENTRIES", "DISPLAY_TIMEZONE", "METEOFRANCE_TOKEN_URL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppEnv != "dev" || cfg.LogLevel != slog.LevelInfo || cfg.Port != "8080" {
		t.Fatalf("unexpected base defaults: %+v", cfg)
	}
	if cfg.MeteoFrance.PollAttempts != 5 || cfg.MeteoFrance.PollDelay != 10*time.Second {
		t.Fatalf("unexpected poll defaults: %+v", cfg.MeteoFrance)
	}
	if cfg.MeteoFrance.TokenURL != defaultTokenURL {
		t.Fatalf("expected default token url, got %q", cfg.MeteoFrance.TokenURL)
	}
	if cfg.LiveCacheTTL != 20*time.Minute || cfg.CacheMaxEntries != 256 {
		t.Fatalf("unexpected cache defaults: ttl=%s max=%d", cfg.LiveCacheTTL, cfg.CacheMaxEntries)
	}
	if cfg.StationRefreshInterval != 0 {
		t.Fatalf("station refresh should be disabled by default")
	}
	if cfg.DisplayLocation.String() != "Europe/Paris" {
		t.Fatalf("expected Europe/Paris, got %s", cfg.DisplayLocation)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("ORDER_POLL_ATTEMPTS", "3")
	t.Setenv("ORDER_POLL_DELAY", "250ms")
	t.Setenv("METEOFRANCE_APPLICATION_ID", "abc==")
	t.Setenv("DISPLAY_TIMEZONE", "UTC")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppEnv != "prod" || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected env/level: %s %s", cfg.AppEnv, cfg.LogLevel)
	}
	if cfg.MeteoFrance.PollAttempts != 3 || cfg.MeteoFrance.PollDelay != 250*time.Millisecond {
		t.Fatalf("unexpected poll config: %+v", cfg.MeteoFrance)
	}
	if cfg.MeteoFrance.ApplicationID != "abc==" {
		t.Fatalf("unexpected application id %q", cfg.MeteoFrance.ApplicationID)
	}
	if cfg.DisplayLocation != time.UTC {
		t.Fatalf("expected UTC location, got %s", cfg.DisplayLocation)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"app env", "APP_ENV", "staging"},
		{"log level", "LOG_LEVEL", "verbose"},
		{"poll attempts", "ORDER_POLL_ATTEMPTS", "five"},
		{"zero poll attempts", "ORDER_POLL_ATTEMPTS", "0"},
		{"poll delay", "ORDER_POLL_DELAY", "10"},
		{"negative ttl", "LIVE_CACHE_TTL", "-1m"},
		{"cache size", "CACHE_MAX_ENTRIES", "many"},
		{"timezone", "DISPLAY_TIMEZONE", "Mars/Olympus"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}
