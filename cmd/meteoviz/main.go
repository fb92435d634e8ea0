package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/i474232898/meteoviz/internal/cache"
	"github.com/i474232898/meteoviz/internal/config"
	"github.com/i474232898/meteoviz/internal/geocode"
	"github.com/i474232898/meteoviz/internal/logging"
	"github.com/i474232898/meteoviz/internal/meteofrance"
	"github.com/i474232898/meteoviz/internal/stations"
	"github.com/i474232898/meteoviz/internal/weather"
)

var version = "dev"

// app holds the wired collaborators shared by every command.
type app struct {
	cfg      *config.AppConfig
	logger   *slog.Logger
	client   *meteofrance.Client
	weather  *weather.Service
	places   *geocode.Client
	stations *stations.Catalogue
}

func newApp(cfg *config.AppConfig, logger *slog.Logger) *app {
	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	mf := cfg.MeteoFrance
	session := meteofrance.NewSession(meteofrance.NewTokenManager(mf.TokenURL, mf.ApplicationID, httpClient))
	client := meteofrance.NewClient(httpClient, session, meteofrance.URLs{
		Observation: mf.ObservationURL,
		OrderHourly: mf.OrderHourlyURL,
		OrderDaily:  mf.OrderDailyURL,
		Recovery:    mf.RecoveryURL,
		StationList: mf.StationListURL,
	},
		meteofrance.WithPollConfig(meteofrance.PollConfig{Attempts: mf.PollAttempts, Delay: mf.PollDelay}),
		meteofrance.WithLogger(logger),
	)

	svc := weather.NewService(client,
		weather.WithLiveCache(cache.Policy{TTL: cfg.LiveCacheTTL, MaxEntries: cfg.CacheMaxEntries}),
		weather.WithClimatologyCache(cache.Policy{TTL: cfg.ClimatologyCacheTTL, MaxEntries: cfg.CacheMaxEntries}),
		weather.WithLocation(cfg.DisplayLocation),
		weather.WithLogger(logger),
	)

	geoOpts := []geocode.Option{geocode.WithLogger(logger)}
	if cfg.GoogleGeocoderAPIKey != "" {
		geoOpts = append(geoOpts, geocode.WithFallback(geocode.NewGoogleLocator(cfg.GoogleGeocoderAPIKey, "France")))
	}
	places := geocode.NewClient(httpClient, cfg.AddressSearchURL, cfg.AddressReverseURL, geoOpts...)

	catalogue, err := stations.Load(cfg.StationsCSV)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("station list not found; run `meteoviz stations download`", "path", cfg.StationsCSV)
		catalogue = &stations.Catalogue{}
	case err != nil:
		logger.Error("failed to load station list", "path", cfg.StationsCSV, "err", err)
		catalogue = &stations.Catalogue{}
	default:
		logger.Info("station list loaded", "path", cfg.StationsCSV, "stations", catalogue.Len())
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		weather:  svc,
		places:   places,
		stations: catalogue,
	}
}

func main() {
	var a *app

	rootCmd := &cobra.Command{
		Use:           "meteoviz",
		Short:         "Weather observations and climatology for France",
		Long:          "Finds the nearest Météo-France station, fetches live observations and orders climatology files.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a = newApp(cfg, logging.New(cfg, version, "meteoviz"))
			return nil
		},
	}

	get := func() *app { return a }
	rootCmd.AddCommand(
		newServeCmd(get),
		newSearchCmd(get),
		newNearestCmd(get),
		newObserveCmd(get),
		newHistoryCmd(get),
		newStationsCmd(get),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
