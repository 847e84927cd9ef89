package okx_client

import (
	"go.uber.org/fx"

	"swap_bot/internal/modules/okx_client/service"
)

// Module — REST-клиент OKX как fx-провайдер.
func Module() fx.Option {
	return fx.Module("okx_client",
		fx.Provide(
			service.NewClient,
		),
	)
}
