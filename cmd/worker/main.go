package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/studio-archive/internal/bootstrap"
	"github.com/kirillkom/studio-archive/internal/config"
	"github.com/kirillkom/studio-archive/internal/observability/logging"
)

const serviceName = "archive-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:         ":" + cfg.WorkerMetricsPort,
		Handler:      app.Metrics.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "queue_group", cfg.NATSQueueGroup)
	err = app.Queue.SubscribeClassifyRequested(ctx, func(handlerCtx context.Context, documentID int64) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, cfg.WorkerMessageTimeout)
		defer cancel()
		return handle(processCtx, app, documentID)
	})
	if err != nil {
		slog.Error("worker_subscribe_error", "error", err)
	}
}

func handle(ctx context.Context, app *bootstrap.App, documentID int64) error {
	start := time.Now()
	app.Metrics.StartDocument()

	if doc, err := app.Repo.GetByID(ctx, documentID); err == nil && !doc.CreatedAt.IsZero() {
		app.Metrics.ObserveQueueLag(start.Sub(doc.CreatedAt))
	}

	err := app.ProcessUC.ProcessByID(ctx, documentID)
	app.Metrics.FinishDocument(time.Since(start), err)
	if err != nil {
		return err
	}

	filename, err := app.FilenameUC.ResolveFilename(ctx, documentID, nil)
	app.Metrics.RecordFilename(err)
	if err != nil {
		// The classification is already stored; naming can be retried from docctl.
		slog.Warn("filename_resolution_failed", "document_id", documentID, "error", err)
		return nil
	}
	slog.Debug("document_processed", "document_id", documentID, "filename", filename)
	return nil
}
