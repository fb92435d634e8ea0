package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	defaultTokenURL       = "https://portail-api.meteofrance.fr/token"
	defaultStationListURL = "https://public-api.meteofrance.fr/public/DPObs/v1/liste-stations"
	defaultObservationURL = "https://public-api.meteofrance.fr/public/DPObs/v1/station/horaire"
	defaultOrderHourlyURL = "https://public-api.meteofrance.fr/public/DPClim/v1/commande-station/horaire"
	defaultOrderDailyURL  = "https://public-api.meteofrance.fr/public/DPClim/v1/commande-station/quotidienne"
	defaultRecoveryURL    = "https://public-api.meteofrance.fr/public/DPClim/v1/commande/fichier"

	defaultAddressSearchURL  = "https://api-adresse.data.gouv.fr/search/"
	defaultAddressReverseURL = "https://api-adresse.data.gouv.fr/reverse/"
)

// MeteoFranceConfig groups the Météo-France portal credentials, endpoints
// and order polling policy.
type MeteoFranceConfig struct {
	ApplicationID string

	TokenURL       string
	StationListURL string
	ObservationURL string
	OrderHourlyURL string
	OrderDailyURL  string
	RecoveryURL    string

	// PollAttempts bounds the number of recovery calls made for one order.
	PollAttempts int
	PollDelay    time.Duration
}

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	MeteoFrance MeteoFranceConfig

	AddressSearchURL     string
	AddressReverseURL    string
	GoogleGeocoderAPIKey string

	HTTPTimeout time.Duration

	// Cache policy for memoized fetches.
	LiveCacheTTL        time.Duration
	ClimatologyCacheTTL time.Duration
	CacheMaxEntries     int // 0 = unlimited
	CachePurgeInterval  time.Duration

	// StationRefreshInterval re-downloads the station list while serving (0 = disabled).
	StationRefreshInterval time.Duration
	StationsCSV            string

	DisplayLocation *time.Location
}

// Load reads configuration from environment (and an optional .env file) with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	if cfg.LogLevel, err = parseLogLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	cfg.MeteoFrance = MeteoFranceConfig{
		ApplicationID:  getenvDefault("METEOFRANCE_APPLICATION_ID", ""),
		TokenURL:       getenvDefault("METEOFRANCE_TOKEN_URL", defaultTokenURL),
		StationListURL: getenvDefault("METEOFRANCE_STATION_LIST_URL", defaultStationListURL),
		ObservationURL: getenvDefault("METEOFRANCE_OBSERVATION_URL", defaultObservationURL),
		OrderHourlyURL: getenvDefault("METEOFRANCE_ORDER_HOURLY_URL", defaultOrderHourlyURL),
		OrderDailyURL:  getenvDefault("METEOFRANCE_ORDER_DAILY_URL", defaultOrderDailyURL),
		RecoveryURL:    getenvDefault("METEOFRANCE_RECOVERY_URL", defaultRecoveryURL),
	}
	if cfg.MeteoFrance.PollAttempts, err = getenvInt("ORDER_POLL_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.MeteoFrance.PollAttempts < 1 {
		return nil, fmt.Errorf("invalid ORDER_POLL_ATTEMPTS %d: must be at least 1", cfg.MeteoFrance.PollAttempts)
	}
	if cfg.MeteoFrance.PollDelay, err = getenvDuration("ORDER_POLL_DELAY", "10s"); err != nil {
		return nil, err
	}

	cfg.AddressSearchURL = getenvDefault("ADDRESS_SEARCH_URL", defaultAddressSearchURL)
	cfg.AddressReverseURL = getenvDefault("ADDRESS_REVERSE_URL", defaultAddressReverseURL)
	cfg.GoogleGeocoderAPIKey = getenvDefault("GOOGLE_GEOCODER_API_KEY", "")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	// The live pair is time-boxed to 20 minutes; climatology barely changes within a day.
	if cfg.LiveCacheTTL, err = getenvDuration("LIVE_CACHE_TTL", "20m"); err != nil {
		return nil, err
	}
	if cfg.ClimatologyCacheTTL, err = getenvDuration("CLIMATOLOGY_CACHE_TTL", "24h"); err != nil {
		return nil, err
	}
	if cfg.CacheMaxEntries, err = getenvInt("CACHE_MAX_ENTRIES", 256); err != nil {
		return nil, err
	}
	if cfg.CachePurgeInterval, err = getenvDuration("CACHE_PURGE_INTERVAL", "15m"); err != nil {
		return nil, err
	}

	if cfg.StationRefreshInterval, err = getenvDuration("STATION_REFRESH_INTERVAL", "0"); err != nil {
		return nil, err
	}
	cfg.StationsCSV = getenvDefault("STATIONS_CSV", "datasets/weather-stations-list.csv")

	tz := getenvDefault("DISPLAY_TIMEZONE", "Europe/Paris")
	if cfg.DisplayLocation, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", tz, err)
	}

	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := getenvDefault(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration %s", key, d)
	}
	return d, nil
}
