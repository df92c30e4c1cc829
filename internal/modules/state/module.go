package state

import (
	"context"

	"spot_bot/internal/modules/config"
	"spot_bot/internal/modules/state/service"
	"spot_bot/pkg/db"
	"spot_bot/pkg/logger"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// New opens the backend named in cfg.State. The caller owns Close.
func New(ctx context.Context, cfg *config.Config) (service.Store, error) {
	switch cfg.State.Backend {
	case config.BackendFile:
		return service.NewFile(cfg.State.Path), nil
	case config.BackendSQLite:
		return service.NewSQLite(cfg.State.Path, cfg.State.Key)
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.State.DSN})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create postgres pool")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "ping postgres")
		}
		return service.NewPostgres(db.NewPgTxManager(pool), cfg.State.Key), nil
	default:
		return nil, errors.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}

func Module() fx.Option {
	return fx.Module("state",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config) (service.Store, error) {
				store, err := New(context.Background(), cfg)
				if err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						logger.Info("closing %s state store", cfg.State.Backend)
						return store.Close()
					},
				})
				return store, nil
			},
		),
	)
}
