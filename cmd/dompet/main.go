package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"dompet/internal/amqp"
	"dompet/internal/auth"
	"dompet/internal/backend"
	"dompet/internal/cli"
	"dompet/internal/config"
	"dompet/internal/drive"
	apphttp "dompet/internal/http"
	applog "dompet/internal/log"
	"dompet/internal/syncstatus"
	"dompet/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
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

	var (
		events syncstatus.Observer
		queue  apphttp.JobQueue
	)
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPExportQueue, cfg.AMQPEventsQueue)
		if err != nil {
			return err
		}
		defer client.Close()
		events = amqp.NewEventPublisher(client, cfg.AMQPEventsQueue)
		queue = amqp.NewExportQueue(client, cfg.AMQPExportQueue)
		logger.Info("AMQP enabled", "exchange", cfg.AMQPExchange, "export_queue", cfg.AMQPExportQueue)
	}

	// HTTP exports always carry the caller's token; the stored OAuth token is
	// reserved for the worker.
	srv := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Backend:        store,
		Verifier:       auth.NewVerifier(cfg.AuthJWTSecret).WithIssuer(cfg.AuthIssuer()),
		Reporter:       worker.NewExporter(store, drive.NewUploader(), nil, cfg.ExportDir),
		Queue:          queue,
		Events:         events,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		Client: apphttp.ClientConfig{
			SupabaseURL:            cfg.SupabaseURL,
			SupabasePublishableKey: cfg.SupabasePublishableKey,
			GoogleClientID:         cfg.GoogleClientID,
			GoogleScriptURL:        cfg.GoogleScriptURL,
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting dompet server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		start := time.Now()
		err := srv.Shutdown(shutdownCtx)
		logger.Info("HTTP server shut down", "duration_ms", time.Since(start).Milliseconds())
		return err
	})
	return g.Wait()
}
