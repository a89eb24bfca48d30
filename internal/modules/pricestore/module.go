package pricestore

import (
	"lever_bot/internal/modules/pricestore/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("pricestore",
		fx.Provide(
			service.New,
		),
	)
}
