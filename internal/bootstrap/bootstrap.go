package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/studio-archive/internal/config"
	"github.com/kirillkom/studio-archive/internal/core/classify"
	"github.com/kirillkom/studio-archive/internal/core/naming"
	"github.com/kirillkom/studio-archive/internal/core/ports"
	"github.com/kirillkom/studio-archive/internal/core/usecase"
	"github.com/kirillkom/studio-archive/internal/infrastructure/queue/nats"
	"github.com/kirillkom/studio-archive/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/studio-archive/internal/infrastructure/resilience"
	"github.com/kirillkom/studio-archive/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/studio-archive/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Rules   config.Rules
	Metrics *metrics.WorkerMetrics

	Queue      ports.MessageQueue
	Repo       ports.DocumentRepository
	Classifier *classify.Classifier

	IngestUC     *usecase.IngestDocumentUseCase
	ProcessUC    ports.DocumentProcessor
	FilenameUC   ports.FilenameService
	AttributesUC ports.AttributeSubmitter

	closeFn func()
}

// New wires the full worker graph: postgres, storage, oracle, classifier,
// naming and NATS.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load classifier rules: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	types := postgres.NewDocumentTypeRepository(db)
	attrs := postgres.NewAttributeRepository(db)
	if err := seedRules(ctx, rules, types, attrs); err != nil {
		_ = db.Close()
		return nil, err
	}
	entities, err := postgres.NewEntityRepository(db, EntityRegistry(rules))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	workerMetrics := metrics.NewWorkerMetrics(service)
	classifier := NewClassifier(cfg, rules, storage, workerMetrics)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	renameUC := usecase.NewRenameDocumentUseCase(repo, types, attrs, naming.NewResolver(entities))

	return &App{
		Config:  cfg,
		Rules:   rules,
		Metrics: workerMetrics,

		Queue:      queue,
		Repo:       repo,
		Classifier: classifier,

		IngestUC:     usecase.NewIngestDocumentUseCase(repo, storage, queue),
		ProcessUC:    usecase.NewClassifyDocumentUseCase(repo, classifier),
		FilenameUC:   renameUC,
		AttributesUC: usecase.NewAttributesUseCase(repo, attrs, renameUC),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// seedRules upserts the document types and attribute definitions declared in
// the rules file so naming patterns stay in sync with configuration.
func seedRules(ctx context.Context, rules config.Rules, types *postgres.DocumentTypeRepository, attrs *postgres.AttributeRepository) error {
	for _, t := range rules.DomainTypes() {
		if err := types.Upsert(ctx, t); err != nil {
			return fmt.Errorf("seed document type %s: %w", t.Code, err)
		}
	}
	for _, def := range rules.DomainAttributes() {
		if _, err := attrs.UpsertDefinition(ctx, def); err != nil {
			return fmt.Errorf("seed attribute %s.%s: %w", def.TypeCode, def.Code, err)
		}
	}
	slog.Info("rules_seeded", "document_types", len(rules.DocumentTypes))
	return nil
}

// OpenDB is exposed for commands that only need the document tables.
func OpenDB(ctx context.Context, cfg config.Config) (*sql.DB, *postgres.DocumentRepository, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, repo, nil
}
