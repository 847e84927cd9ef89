package engine

import (
	"context"

	"go.uber.org/fx"

	"swap_bot/internal/modules/config"
	okx "swap_bot/internal/modules/okx_client/service"
	wss "swap_bot/internal/modules/okx_websocket/service"
	"swap_bot/internal/notify"
	"swap_bot/pkg/db"
	"swap_bot/pkg/logger"
)

// Module — движок и его жизненный цикл.
func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			func(cfg *config.Config, client *okx.Client, pub *wss.PublicStream, priv *wss.PrivateStream, gate *wss.Gate, emit *notify.FanOut, tg *notify.Telegram, tx *db.PgTxManager) *Engine {
				var journal *Journal
				if tx != nil {
					journal = NewJournal(tx)
				}

				e := NewEngine(cfg, NewAPIAdapter(client), pub, priv, gate, emit, tg, journal)

				// Мёртвые ключи: глушим шумные логи, зовём оператора, гасим входы.
				client.OnCredentialsInvalid(func(code, msg string) {
					logger.Error("okx credentials invalidated: code=%s msg=%s", code, msg)
					logger.SetSuppressed(true)
					tg.Sendf("OKX credentials invalidated (code=%s), trading halted", code)
					e.Stop()
				})
				return e
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, e *Engine, cfg *config.Config) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if e.journal != nil {
						if err := e.journal.Init(ctx); err != nil {
							return err
						}
					}
					// Без ключей наблюдаем рынок, но не торгуем.
					passive := cfg.ActiveCredentials().Empty()
					return e.Start(ctx, passive)
				},
				OnStop: func(ctx context.Context) error {
					e.Shutdown()
					return nil
				},
			})
		}),
	)
}
