package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/meteoviz/internal/api/http"
	"github.com/i474232898/meteoviz/internal/scheduler"
	"github.com/i474232898/meteoviz/internal/stations"
)

func newServeCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(get())
		},
	}
}

func serve(a *app) error {
	// Background maintenance: cache purge and optional station list refresh.
	sched := scheduler.New(a.logger,
		scheduler.PurgeJob(a.weather, a.cfg.CachePurgeInterval),
		scheduler.Job{
			Name:     "station-refresh",
			Interval: a.cfg.StationRefreshInterval,
			Timeout:  2 * time.Minute,
			Run: func(ctx context.Context) error {
				fresh, err := stations.Download(ctx, a.client, a.cfg.StationsCSV)
				if err != nil {
					return err
				}
				a.stations.Replace(fresh)
				a.logger.Info("station list refreshed", "stations", fresh.Len())
				return nil
			},
		},
	)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	server := httpapi.NewApp(httpapi.Deps{
		Weather:  a.weather,
		Stations: a.stations,
		Places:   a.places,
		Logger:   a.logger,
	})

	go func() {
		a.logger.Info("http server listening", "port", a.cfg.Port)
		if err := server.Listen(":" + a.cfg.Port); err != nil {
			a.logger.Error("fiber server stopped", "err", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Error("error during shutdown", "err", err)
	}
	return nil
}
