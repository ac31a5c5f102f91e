package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"iexpense/internal/amqp"
	"iexpense/internal/backend"
	"iexpense/internal/cli"
	"iexpense/internal/expense"
	apphttp "iexpense/internal/http"
	"iexpense/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize storage backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Error("Failed to close storage backend", log.FieldError, err)
		}
	}()

	opts := []expense.Option{expense.WithLogger(logger)}

	// Change events are optional; the store works without a broker.
	if cfg.EventsEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, change events disabled", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			opts = append(opts, expense.WithObserver(amqpClient.Observer(ctx)))
			logger.Info("Publishing change events", "exchange", cfg.AMQPExchange)
		}
	}

	store := expense.New(ctx, result.Store, cfg.StoreKey, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, store, apphttp.Options{
		CurrencyCode: cfg.CurrencyCode,
		Logger:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting iexpense server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			log.FieldStoreKey, store.Key(),
			log.FieldCount, store.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		start := time.Now()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("Server stopped gracefully", log.FieldDurationHuman, time.Since(start).String())
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
}
