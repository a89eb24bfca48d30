package coordinator

import (
	"context"

	"lever_bot/internal/modules/config"
	"lever_bot/internal/modules/coordinator/service"
	exchange "lever_bot/internal/modules/exchange/service"
	"lever_bot/internal/notify"
	"lever_bot/internal/store"
	storepg "lever_bot/internal/store/pg"
	"lever_bot/pkg/db"
	"lever_bot/pkg/locker"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("coordinator",
		fx.Provide(
			func(m db.TxManager) store.Positions { return storepg.NewPositions(m) },
			func(m db.TxManager) store.Orders { return storepg.NewOrders(m) },
			func(m db.TxManager) store.Bots { return storepg.NewBots(m) },
			func(m db.TxManager) store.Managers { return storepg.NewManagers(m) },
			func(m db.TxManager) store.Audits { return storepg.NewAudits(m) },
			func(
				cfg *config.Config,
				positions store.Positions,
				orders store.Orders,
				bots store.Bots,
				audits store.Audits,
				locks locker.Locker,
				registry *exchange.Registry,
				notifier notify.Notifier,
			) *service.Executor {
				return service.NewExecutor(
					positions, orders, bots, audits,
					locks, registry, notifier,
					cfg.LockTTL, cfg.ManagerName,
				)
			},
			func(
				cfg *config.Config,
				bots store.Bots,
				managers store.Managers,
				bus service.Bus,
				executor *service.Executor,
			) *service.Manager {
				return service.NewManager(
					cfg.ManagerName, bots, managers, bus, executor,
					cfg.ReconcileEvery, cfg.HeartbeatEvery,
				)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, m *service.Manager) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						defer close(done)
						m.Run(ctx)
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
