package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/homedisk/internal/config"
	"github.com/and161185/homedisk/internal/limiter"
	"github.com/and161185/homedisk/internal/metrics"
	"github.com/and161185/homedisk/internal/migrate"
	"github.com/and161185/homedisk/internal/repository"
	"github.com/and161185/homedisk/internal/repository/badgerdb"
	"github.com/and161185/homedisk/internal/repository/postgres"
	"github.com/and161185/homedisk/internal/repository/sqlite"
)

var errBadgerClosed = errors.New("badger: database closed")

// store bundles the user repository and login limiter of one database driver.
type store struct {
	users   repository.UserRepository
	limiter limiter.Limiter
	ping    func(context.Context) error
	close   func()
}

func openStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*store, error) {
	policy := limiter.Policy{
		Window:   cfg.Auth.LockoutWindow,
		MaxFails: cfg.Auth.LockoutMaxFails,
		BlockFor: cfg.Auth.LockoutBlock,
	}

	switch cfg.Database.Driver {
	case "postgres":
		if err := migrate.UpPostgres(ctx, cfg.Database.DSN); err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &store{
			users:   postgres.NewUserRepo(db),
			limiter: limiter.NewPG(db.Pool, policy),
			ping:    db.Ping,
			close:   db.Close,
		}, nil

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return &store{
			users:   sqlite.NewUserRepo(db),
			limiter: memoryLimiter(policy, m),
			ping:    db.PingContext,
			close:   func() { _ = db.Close() },
		}, nil

	case "badger":
		db, err := badgerdb.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return &store{
			users:   badgerdb.NewUserRepo(db),
			limiter: memoryLimiter(policy, m),
			ping: func(context.Context) error {
				if db.IsClosed() {
					return errBadgerClosed
				}
				return nil
			},
			close: func() { _ = db.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

func memoryLimiter(p limiter.Policy, m *metrics.Metrics) *limiter.Memory {
	lim := limiter.NewMemory(p)
	m.GaugeFunc("homedisk_auth_limiter_entries", "Tracked (username, ip) pairs in the in-memory login limiter",
		func() float64 { return float64(lim.Len()) })
	return lim
}
