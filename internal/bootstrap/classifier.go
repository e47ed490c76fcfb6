package bootstrap

import (
	"log/slog"

	"github.com/kirillkom/studio-archive/internal/config"
	"github.com/kirillkom/studio-archive/internal/core/classify"
	"github.com/kirillkom/studio-archive/internal/core/ports"
	"github.com/kirillkom/studio-archive/internal/infrastructure/extractor"
	"github.com/kirillkom/studio-archive/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/studio-archive/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/studio-archive/internal/infrastructure/extractor/xlsx"
	"github.com/kirillkom/studio-archive/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/studio-archive/internal/infrastructure/llm/openai"
	"github.com/kirillkom/studio-archive/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/studio-archive/internal/infrastructure/resilience"
)

// NewClassifier builds the hybrid classifier over the given storage. An
// oracle that cannot be constructed degrades the classifier to rules only.
func NewClassifier(cfg config.Config, rules config.Rules, storage ports.ObjectStorage, observer ports.DecisionObserver) *classify.Classifier {
	settings := ClassifierSettings(cfg, rules)
	return classify.New(settings, newOracle(cfg, settings.Types()), NewExtractor(storage), observer)
}

func NewExtractor(storage ports.ObjectStorage) *extractor.Registry {
	text := plaintext.NewExtractor(storage)
	return extractor.NewRegistry(map[string]ports.TextExtractor{
		".txt":  text,
		".md":   text,
		".csv":  text,
		".pdf":  pdf.NewExtractor(storage),
		".xlsx": xlsx.NewExtractor(storage),
	})
}

func ClassifierSettings(cfg config.Config, rules config.Rules) classify.Settings {
	settings := classify.DefaultSettings()
	c := rules.Classifier
	if c.Threshold != nil {
		settings.Threshold = *c.Threshold
	}
	if c.DefaultConfidence != nil {
		settings.DefaultConfidence = *c.DefaultConfidence
	}
	if c.CatchAllType != "" {
		settings.CatchAllType = c.CatchAllType
	}
	for code, kw := range c.Types {
		if len(kw.FilenameKeywords) > 0 {
			settings.FilenameKeywords[code] = kw.FilenameKeywords
		}
		if len(kw.ContentKeywords) > 0 {
			settings.ContentKeywords[code] = kw.ContentKeywords
		}
	}
	settings.OracleTimeout = cfg.OracleTimeout
	return settings
}

func EntityRegistry(rules config.Rules) postgres.EntityRegistry {
	registry := make(postgres.EntityRegistry, len(rules.Entities))
	for key, e := range rules.Entities {
		relations := make(map[string]postgres.EntityRelation, len(e.Relations))
		for name, rel := range e.Relations {
			relations[name] = postgres.EntityRelation{Column: rel.Column, Kind: rel.Kind, Subtype: rel.Subtype}
		}
		registry[key] = postgres.EntityTable{Table: e.Table, KeyColumn: e.KeyColumn, Relations: relations}
	}
	return registry
}

func oracleExecutor(cfg config.Config) *resilience.Executor {
	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.OracleRetryLimit
	policy.BreakerEnabled = cfg.BreakerEnabled
	policy.RateLimit = cfg.OracleRateLimit
	return resilience.NewExecutor(policy)
}

func newOracle(cfg config.Config, types []string) ports.ClassificationOracle {
	switch cfg.OracleProvider {
	case config.OracleOllama:
		return ollama.NewOracle(ollama.New(cfg.OllamaURL, cfg.OllamaModel, oracleExecutor(cfg)), types)
	case config.OracleOpenAI:
		oracle, err := openai.New(openai.Options{
			APIKey:   cfg.OpenAIAPIKey,
			BaseURL:  cfg.OpenAIBaseURL,
			Model:    cfg.OpenAIModel,
			Types:    types,
			Executor: oracleExecutor(cfg),
		})
		if err != nil {
			slog.Warn("oracle_disabled", "provider", cfg.OracleProvider, "error", err)
			return nil
		}
		return oracle
	case config.OracleNone, "":
		return nil
	default:
		slog.Warn("oracle_disabled", "provider", cfg.OracleProvider, "error", "unknown provider")
		return nil
	}
}
