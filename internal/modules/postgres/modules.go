package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"swap_bot/internal/modules/config"
	"swap_bot/pkg/db"
)

// Module — пул Postgres для журнала сделок. Пустой DSN — журнал выключен,
// провайдер отдаёт nil и движок работает без записи.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					return nil, nil
				}

				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
		),
	)
}
