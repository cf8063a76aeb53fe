package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/econ-calendar-client/internal/app"
	"github.com/Sternrassler/econ-calendar-client/internal/config"
	"github.com/Sternrassler/econ-calendar-client/pkg/logging"
	"github.com/Sternrassler/econ-calendar-client/pkg/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("CALENDAR_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Output:  os.Stderr,
		Service: "calendar-api",
	})
	logger := logging.NewLogger("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := app.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	if rdb != nil {
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	} else {
		logger.Info().Msg("No Redis configured - sessions kept in memory")
	}

	a, err := app.New(cfg, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create calendar client")
	}
	defer a.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(rdb))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/calendar", calendarHandler(a.Retriever, a.Filters))
	mux.HandleFunc("/calendar.csv", calendarCSVHandler(a.Retriever, a.Filters))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", server.Addr).
		Str("upstream", cfg.Upstream.URL).
		Int("days_per_chunk", cfg.Retrieval.DaysPerChunk).
		Int("concurrency", cfg.Retrieval.Concurrency).
		Msg("Starting calendar API server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server stopped")
}
