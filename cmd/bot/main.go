package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"swap_bot/internal/engine"
	"swap_bot/internal/models"
	"swap_bot/internal/modules/config"
	"swap_bot/internal/modules/okx_client"
	"swap_bot/internal/modules/okx_websocket"
	"swap_bot/internal/modules/postgres"
	"swap_bot/internal/notify"
	"swap_bot/pkg/logger"
	"swap_bot/pkg/tracing"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName("swap_bot")
	tracing.SetServiceName("swap_bot")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		okx_client.Module(),
		okx_websocket.Module(),
		notify.Module(),
		engine.Module(),
		fx.Invoke(setupObservability),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}

// setupObservability — уровень логов, зеркало логов в UI, трейсер.
func setupObservability(lc fx.Lifecycle, cfg *config.Config, emit *notify.FanOut) error {
	lvl, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)

	logger.SetSink(func(level, msg string) {
		emit.Emit(models.EventConsoleLog, models.ConsoleLogEvent{
			Message:   msg,
			Level:     level,
			Timestamp: models.NowStamp(),
		})
	})

	if cfg.Jaeger.Host != "" {
		_, closeTracer, err := tracing.InitTracer(tracing.Config{
			Host: cfg.Jaeger.Host,
			Port: cfg.Jaeger.Port,
		})
		if err != nil {
			return err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				closeTracer()
				return nil
			},
		})
	}
	return nil
}
