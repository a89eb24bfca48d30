package exchange

import (
	"lever_bot/internal/modules/config"
	"lever_bot/internal/modules/exchange/service"
	marketdata "lever_bot/internal/modules/marketdata/service"
	pricestore "lever_bot/internal/modules/pricestore/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("exchange",
		fx.Provide(
			func(cfg *config.Config, prices *pricestore.Store, books *marketdata.Books) *service.Registry {
				return service.NewRegistry(prices, cfg.MarketData.Exchange, books, cfg.MarketData.DepthOffset)
			},
		),
	)
}
