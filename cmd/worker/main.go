package main

import (
	"context"

	"lever_bot/internal/modules/config"
	"lever_bot/internal/modules/coordinator"
	coordsvc "lever_bot/internal/modules/coordinator/service"
	"lever_bot/internal/modules/exchange"
	"lever_bot/internal/modules/marketdata"
	"lever_bot/internal/modules/postgres"
	"lever_bot/internal/modules/pricestore"
	"lever_bot/internal/notify"
	"lever_bot/pkg/db"
	"lever_bot/pkg/locker"
	"lever_bot/pkg/logger"
	"lever_bot/pkg/queue"
	"lever_bot/pkg/tracing"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

func main() {
	_ = godotenv.Load()

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			func(m *db.PgTxManager) *queue.PG { return queue.NewPG(m.Pool()) },
			func(q *queue.PG) coordsvc.Bus { return q },
			func(cfg *config.Config, m *db.PgTxManager) locker.Locker {
				return locker.NewPG(m.Pool(), cfg.ManagerName)
			},
			// Notifier: если TELEGRAM_* нет — используем stdout
			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
					if tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID); err == nil {
						return tg
					}
				}
				return notify.NewStdout()
			},
		),
		config.Module(),
		postgres.Module(),
		pricestore.Module(),
		marketdata.Module(),
		exchange.Module(),
		coordinator.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			logger.SetServiceName("worker")
			tracing.SetServiceName("worker")
			if err := logger.Init(cfg.LogLevel); err != nil {
				return err
			}
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				logger.Error("tracing disabled: %v", err)
				return nil
			}
			lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					closeTracer()
					return nil
				},
			})
			return nil
		}),
	)
	app.Run()
}
