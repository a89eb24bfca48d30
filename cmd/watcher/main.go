package main

import (
	"context"

	"lever_bot/internal/modules/config"
	"lever_bot/internal/modules/marketdata"
	"lever_bot/internal/modules/postgres"
	"lever_bot/internal/modules/pricestore"
	"lever_bot/internal/modules/watcher"
	"lever_bot/pkg/db"
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
			func(m *db.PgTxManager) queue.Publisher { return queue.NewPG(m.Pool()) },
		),
		config.Module(),
		postgres.Module(),
		pricestore.Module(),
		marketdata.Module(),
		watcher.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			logger.SetServiceName("watcher")
			tracing.SetServiceName("watcher")
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
