package okx_websocket

import (
	"go.uber.org/fx"

	"swap_bot/internal/modules/okx_websocket/service"
)

// Module — оба стрима и общий гейт готовности.
func Module() fx.Option {
	return fx.Module("okx_websocket",
		fx.Provide(
			service.NewGate,
			service.NewPublicStream,
			service.NewPrivateStream,
		),
	)
}
