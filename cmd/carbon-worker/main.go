package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"carbontracker/internal/amqp"
	"carbontracker/internal/backend"
	"carbontracker/internal/cli"
	"carbontracker/internal/config"
	applog "carbontracker/internal/log"
	"carbontracker/internal/services"
	gsheet "carbontracker/internal/sheets/google"
	"carbontracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	logger.Info("Starting carbon-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	remote, err := backend.NewRecordsClient(backendCfg)
	if err != nil {
		logger.Error("Failed to initialize records client", "error", err)
		os.Exit(1)
	}

	wcfg := worker.Config{
		ServiceToken: cfg.RecordsServiceToken,
		MaxAttempts:  cfg.SyncMaxAttempts,
	}

	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.NewFromEnv(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		wcfg.Exporter = sheetsClient
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPNotifyQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		if cfg.AMQPNotifyQueue != "" {
			wcfg.Notifier = amqpClient
		}
	} else {
		logger.Info("AMQP disabled - relying on periodic sweeps only")
	}

	syncWorker := worker.NewSyncWorker(repo, remote, wcfg)
	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return processor.Run(gctx)
	})
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.ConsumePurchaseSync(gctx, syncWorker.HandleSyncMessage)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
