package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/studio-archive/internal/adapters/cli"
	"github.com/kirillkom/studio-archive/internal/bootstrap"
	"github.com/kirillkom/studio-archive/internal/config"
	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/studio-archive/internal/observability/logging"
)

const serviceName = "docctl"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.Deps{
		ClassifyDir: func(ctx context.Context, dir string) ([]domain.Decision, error) {
			return classifyDir(ctx, cfg, dir)
		},
		Open: func(ctx context.Context) (*cli.Services, func(), error) {
			app, err := bootstrap.New(ctx, cfg, serviceName)
			if err != nil {
				return nil, nil, err
			}
			return &cli.Services{
				Ingestor:   app.IngestUC,
				Processor:  app.ProcessUC,
				Filenames:  app.FilenameUC,
				Attributes: app.AttributesUC,
				Publisher:  app.Queue,
			}, app.Close, nil
		},
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

// classifyDir runs the classifier over a plain directory without touching
// postgres or NATS.
func classifyDir(ctx context.Context, cfg config.Config, dir string) ([]domain.Decision, error) {
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	storage, err := localfs.New(dir)
	if err != nil {
		return nil, fmt.Errorf("open directory: %w", err)
	}
	keys, err := storage.List(ctx)
	if err != nil {
		return nil, err
	}
	files := make([]domain.FileRef, 0, len(keys))
	for _, key := range keys {
		files = append(files, domain.FileRef{Name: key, Path: key})
	}
	classifier := bootstrap.NewClassifier(cfg, rules, storage, nil)
	return classifier.ClassifyBatch(ctx, files), nil
}
