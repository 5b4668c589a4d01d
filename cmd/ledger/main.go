package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/gateway"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/repository"
	"ledger/internal/services"
	"ledger/internal/session"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	logger.Info("Starting ledger", "backend", cfg.DataBackend, "port", cfg.Port)

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Ledger stopped with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	store, err := cli.OpenGateway(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Closing storage failed", log.FieldError, err)
		}
	}()

	repos := repository.New(store.Gateway, repository.WithLogger(logger.WithComponent(log.ComponentGateway).Logger))
	if cfg.SeedDefaultCategories {
		n, err := repos.Categories.InitializeDefaults(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("Default categories created", "count", n)
		}
	}

	opts := []services.Option{services.WithLogger(logger)}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Logger)
		if err != nil {
			// Events are best effort; the API runs without them.
			logger.Warn("AMQP unavailable, ledger events disabled", log.FieldError, err)
		} else {
			defer client.Close()
			opts = append(opts, services.WithPublisher(client))
		}
	}

	sessions := session.NewManager(cfg.SessionCapacity, cfg.SessionTTL, session.WithLogger(logger.WithComponent(log.ComponentAuth).Logger))
	unsubscribe := sessions.Subscribe(func(ev session.Event) {
		logger.Debug("Session event", "type", ev.Type, log.FieldUserID, ev.Session.UserID)
	})
	defer unsubscribe()

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register(sessions.Cache())
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	auth := services.NewAuthService(repos, sessions, opts...)
	ledger := services.NewLedgerService(repos, opts...)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready: func(ctx context.Context) error {
			_, err := store.Gateway.QueryOne(ctx, gateway.TableUsers, gateway.Query{})
			return err
		},
	}, auth, ledger, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, shutdownTimeout) })
	return g.Wait()
}
