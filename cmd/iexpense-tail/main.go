// Command iexpense-tail follows record change events published by the
// server and logs each one.
package main

import (
	"context"
	"errors"
	"os"

	"iexpense/internal/amqp"
	"iexpense/internal/cli"
	"iexpense/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required to follow change events")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	logger.Info("Following change events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	err = client.ConsumeRecordsChanged(ctx, func(msg *amqp.RecordsChangedMessage) error {
		logger.Info("Records changed",
			log.FieldOperation, msg.Kind,
			"ids", len(msg.IDs),
			log.FieldCount, msg.Count,
			"persisted", msg.Persisted,
			"at", msg.Timestamp)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Stopped following change events")
}
