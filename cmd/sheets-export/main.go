package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/cli"
	applog "finledger/internal/log"
	"finledger/internal/sheets/google"
	"finledger/internal/worker"
)

const exportConcurrency = 2

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	if !cfg.ExportEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required for the sheets export")
		os.Exit(1)
	}
	logger.Info("Starting sheets-export", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	client, err := google.New(ctx, google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	exporter := worker.NewExportWorker(repo, client, exportConcurrency)

	// Catch up on changes made while the exporter was down.
	exported, failed, err := exporter.StartupExport(ctx)
	if err != nil {
		logger.Error("Startup export failed", "error", err)
	} else {
		logger.Info("Startup export complete", "exported", exported, "failed", failed)
	}

	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - exiting after the startup export")
		return
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.ExportQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- amqpClient.ConsumeEvents(ctx, exporter.HandleEvent)
	}()

	select {
	case <-ctx.Done():
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption failed", "error", err)
		}
		cancel()
	}

	cli.Shutdown(logger, 30*time.Second, func(context.Context) error {
		return amqpClient.Close()
	})
}
