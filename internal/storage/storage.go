// Package storage opens the repository set for the configured driver.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/baharkarakas/bookswap-backend/internal/config"
	"github.com/baharkarakas/bookswap-backend/internal/db"
	"github.com/baharkarakas/bookswap-backend/internal/repository"
	"github.com/baharkarakas/bookswap-backend/internal/repository/postgres"
	"github.com/baharkarakas/bookswap-backend/internal/repository/sqlite"
)

// Storage is an open driver: its repositories plus lifecycle hooks.
type Storage struct {
	Repos repository.Set
	Ping  func(ctx context.Context) error
	Close func()
}

// Open connects the driver named in cfg. Postgres runs migrations only when migrate is
// set; SQLite always migrates on open.
func Open(ctx context.Context, cfg config.Config, migrate bool, log *slog.Logger) (*Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if migrate {
			if err := db.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
			log.Info("migrations applied", "driver", cfg.StorageDriver)
		}
		return &Storage{Repos: postgres.NewRepositories(pool), Ping: pool.Ping, Close: pool.Close}, nil

	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Storage{
			Repos: st.Repositories(),
			Ping:  st.Ping,
			Close: func() {
				if err := st.Close(); err != nil {
					log.Error("close sqlite", "err", err)
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
