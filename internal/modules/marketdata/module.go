package marketdata

import (
	"context"

	"lever_bot/internal/modules/config"
	"lever_bot/internal/modules/marketdata/service"
	pricestore "lever_bot/internal/modules/pricestore/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("marketdata",
		fx.Provide(
			service.NewBooks,
			func(cfg *config.Config, books *service.Books, prices *pricestore.Store) *service.Stream {
				return service.NewStream(service.StreamConfig{
					Exchange: cfg.MarketData.Exchange,
					WSURL:    cfg.MarketData.WSURL,
					RestURL:  cfg.MarketData.RestURL,
					Symbols:  cfg.MarketData.Symbols,
				}, books, prices)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, stream *service.Stream) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						defer close(done)
						stream.Run(ctx)
					}()
					return nil
				},
				OnStop: func(_ context.Context) error {
					cancel()
					<-done
					return nil
				},
			})
		}),
	)
}
