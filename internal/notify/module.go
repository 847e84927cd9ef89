package notify

import (
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			NewTelegram,
			func(tg *Telegram) *FanOut {
				f := NewFanOut()
				f.Attach(LogEmitter{})
				f.Attach(tg)
				return f
			},
		),
	)
}
