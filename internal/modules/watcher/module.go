package watcher

import (
	"context"

	"lever_bot/internal/modules/config"
	pricestore "lever_bot/internal/modules/pricestore/service"
	"lever_bot/internal/modules/watcher/service"
	"lever_bot/internal/store"
	storepg "lever_bot/internal/store/pg"
	"lever_bot/pkg/db"
	"lever_bot/pkg/queue"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("watcher",
		fx.Provide(
			func(m db.TxManager) store.Positions { return storepg.NewPositions(m) },
			func(m db.TxManager) store.Orders { return storepg.NewOrders(m) },
			func(m db.TxManager) store.Bots { return storepg.NewBots(m) },
			func(m db.TxManager) store.Audits { return storepg.NewAudits(m) },
			func(
				cfg *config.Config,
				positions store.Positions,
				orders store.Orders,
				bots store.Bots,
				audits store.Audits,
				prices *pricestore.Store,
				publisher queue.Publisher,
			) *service.Watcher {
				return service.NewWatcher(
					positions, orders, bots, audits,
					prices, publisher,
					cfg.WatchTick, cfg.ManagerName, cfg.MarketData.Exchange,
				)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, w *service.Watcher) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						defer close(done)
						w.Run(ctx)
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
