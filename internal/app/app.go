// Package app wires the calendar client stack from a configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/econ-calendar-client/internal/config"
	"github.com/Sternrassler/econ-calendar-client/pkg/calendar"
	"github.com/Sternrassler/econ-calendar-client/pkg/client"
	"github.com/Sternrassler/econ-calendar-client/pkg/pagination"
	"github.com/Sternrassler/econ-calendar-client/pkg/parser"
	"github.com/Sternrassler/econ-calendar-client/pkg/retrieval"
	"github.com/Sternrassler/econ-calendar-client/pkg/session"
	"github.com/redis/go-redis/v9"
)

// App holds the assembled components.
type App struct {
	Client    *client.Client
	Sessions  *session.Provider
	Fetcher   *pagination.Fetcher
	Retriever *retrieval.Retriever
	Redis     *redis.Client

	// Filters are the configured defaults for every request.
	Filters calendar.Filters
}

// New builds the stack. rdb may be nil to keep sessions in memory.
func New(cfg *config.Config, rdb *redis.Client) (*App, error) {
	calClient, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create calendar client: %w", err)
	}

	var store *session.Store
	if rdb != nil {
		store = session.NewStore(rdb, cfg.Session.Key)
	}
	sessions := session.NewProvider(store, calClient, cfg.ProviderConfig())

	// timeZone 55 is UTC; naive upstream times are read in UTC
	fetcher := pagination.NewFetcher(calClient, parser.New(time.UTC), cfg.FetcherConfig())

	return &App{
		Client:    calClient,
		Sessions:  sessions,
		Fetcher:   fetcher,
		Retriever: retrieval.New(fetcher, sessions, cfg.RetrieverConfig()),
		Redis:     rdb,
		Filters:   cfg.BaseFilters(),
	}, nil
}

// ConnectRedis opens and pings the configured Redis. It returns nil, nil
// when no address is configured.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// Close releases the client and the Redis connection.
func (a *App) Close() error {
	if err := a.Client.Close(); err != nil {
		return err
	}
	if a.Redis != nil {
		return a.Redis.Close()
	}
	return nil
}
