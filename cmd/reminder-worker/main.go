package main

import (
	"context"
	"os"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/cli"
	applog "finledger/internal/log"
	"finledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentScheduled)

	logger.Info("Starting reminder-worker", "schedule", cfg.ReminderSchedule, "timezone", cfg.ReminderTimezone)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Reminders are only logged when no broker is configured.
	notifier := services.NewNotifier(nil)
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		notifier = services.NewNotifier(amqpClient)
	} else {
		logger.Info("AMQP disabled - reminders will be logged only")
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	pcfg := services.DefaultReminderProcessorConfig()
	pcfg.Schedule = cfg.ReminderSchedule
	pcfg.Location = cfg.Location()

	processor := services.NewReminderProcessor(repo, notifier, pcfg)
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start reminder processor", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	cli.Shutdown(logger, 30*time.Second, func(ctx context.Context) error {
		return processor.Stop(ctx)
	})
}
