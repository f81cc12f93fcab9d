// Package bootstrap opens the stores a process runs on, as selected by config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gymdesk/internal/config"
	"gymdesk/internal/fallback"
	"gymdesk/internal/primary"
	"gymdesk/internal/store"
)

// Stores are the opened persistence layers. Close releases both.
type Stores struct {
	Primary store.Primary
	Cache   *fallback.Cache
	closers []func() error
}

func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// Facade builds the persistence facade over the opened stores.
func (s *Stores) Facade(logger *slog.Logger) *store.Facade {
	return store.New(s.Primary, s.Cache, logger)
}

// Open connects the primary store and the fallback cache.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stores{}

	switch cfg.Primary {
	case config.PrimaryPostgres:
		pg, err := primary.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Primary = pg
	case config.PrimaryMemory:
		s.Primary = primary.NewMemory()
	case config.PrimaryNone:
		logger.Warn("no primary store configured, running on the fallback cache only")
	default:
		return nil, fmt.Errorf("unknown primary store %q", cfg.Primary)
	}

	cache, err := OpenCache(cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Cache = cache.Cache
	s.closers = append(s.closers, cache.Close)
	return s, nil
}

// CacheHandle is a fallback cache and the backend it owns.
type CacheHandle struct {
	Cache *fallback.Cache
	Close func() error
}

// OpenCache opens the durable SQLite cache, or a disabled one when client
// storage is off.
func OpenCache(cfg config.Config, logger *slog.Logger) (CacheHandle, error) {
	if !cfg.ClientStorage {
		return CacheHandle{
			Cache: fallback.New(fallback.Disabled{}, logger),
			Close: func() error { return nil },
		}, nil
	}
	backend, err := fallback.OpenSQLite(cfg.CachePath, logger)
	if err != nil {
		return CacheHandle{}, err
	}
	return CacheHandle{Cache: fallback.New(backend, logger), Close: backend.Close}, nil
}
