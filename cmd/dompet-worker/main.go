package main

import (
	"context"
	"errors"
	"os"

	"dompet/internal/amqp"
	"dompet/internal/backend"
	"dompet/internal/cli"
	"dompet/internal/config"
	"dompet/internal/drive"
	applog "dompet/internal/log"
	"dompet/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting dompet-worker")
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	store, err := backend.Open(ctx, bcfg, logger.WithComponent(applog.ComponentBackend).Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var tokens drive.TokenProvider
	if cfg.DriveOAuthEnabled() {
		p, err := drive.NewOAuthTokenProvider(ctx, drive.OAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			TokenFile:    cfg.GoogleOAuthTokenFile,
			TokenJSON:    cfg.GoogleOAuthTokenJSON,
		})
		if err != nil {
			return err
		}
		tokens = p
	} else {
		logger.Warn("No stored Google token; only jobs carrying an access token will succeed")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPExportQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	exporter := worker.NewExporter(store, drive.NewUploader(), tokens, cfg.ExportDir)
	logger.Info("Consuming export jobs", "queue", cfg.AMQPExportQueue)
	return client.ConsumeExportJobs(ctx, cfg.AMQPExportQueue, exporter.HandleExportJob)
}
