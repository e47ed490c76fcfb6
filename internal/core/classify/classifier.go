// Package classify assigns a document type to an unstructured file by keyword
// rules, escalating to an external oracle when rule confidence is too low.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/core/ports"
)

// availability is implemented by oracles that can report themselves
// unavailable, e.g. while their circuit breaker is open.
type availability interface {
	Available() bool
}

type Classifier struct {
	settings  Settings
	oracle    ports.ClassificationOracle
	extractor ports.TextExtractor
	observer  ports.DecisionObserver
	now       func() time.Time
}

// New builds a classifier. A nil oracle makes it rule-only; a nil extractor
// turns every ClassifyBatch entry into an error decision.
func New(
	settings Settings,
	oracle ports.ClassificationOracle,
	extractor ports.TextExtractor,
	observer ports.DecisionObserver,
) *Classifier {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Classifier{
		settings:  settings.normalize(),
		oracle:    oracle,
		extractor: extractor,
		observer:  observer,
		now:       time.Now,
	}
}

func (c *Classifier) Settings() Settings { return c.settings }

// ClassifyFile decides the type of an already extracted document. It always
// returns a decision.
func (c *Classifier) ClassifyFile(ctx context.Context, doc domain.ParsedDocument) domain.Decision {
	start := c.now()
	best, scores := scoreRules(c.settings, doc.Filename, doc.Text)

	var decision domain.Decision
	switch {
	case best.Score >= c.settings.Threshold:
		decision = ruleDecision(best, domain.MethodRule,
			fmt.Sprintf("rule score %.2f >= threshold %.2f: %s", best.Score, c.settings.Threshold, best.Reason))
	case c.oracleReady() && strings.TrimSpace(doc.Text) != "":
		verdict, err := c.consultOracle(ctx, doc)
		if err != nil {
			slog.Warn("oracle_fallback",
				"filename", doc.Filename,
				"rule_type", best.Type,
				"rule_score", best.Score,
				"error", err,
			)
			decision = ruleDecision(best, domain.MethodRuleFallback,
				fmt.Sprintf("rule score %.2f below threshold %.2f, oracle failed: %s", best.Score, c.settings.Threshold, best.Reason))
			break
		}
		decision = domain.Decision{
			PredictedType:   verdict.Type,
			ConfidenceScore: *verdict.Confidence,
			Method:          domain.MethodLLM,
			Reasoning:       verdict.Reasoning,
		}
	default:
		decision = ruleDecision(best, domain.MethodRuleOnly,
			fmt.Sprintf("rule score %.2f below threshold %.2f, no oracle consulted: %s", best.Score, c.settings.Threshold, best.Reason))
	}

	decision.Filename = doc.Filename
	decision.RuleScores = scores
	decision.ExtractedText = doc.Text
	decision.ExtractedMetadata = doc.Metadata
	return c.finalize(decision, start)
}

// ClassifyBatch classifies files independently. The output has one entry per
// input, in the same order; a failing file yields an error decision.
func (c *Classifier) ClassifyBatch(ctx context.Context, files []domain.FileRef) []domain.Decision {
	out := make([]domain.Decision, len(files))
	for i, file := range files {
		out[i] = c.classifyRef(ctx, file)
	}
	return out
}

func (c *Classifier) classifyRef(ctx context.Context, file domain.FileRef) (decision domain.Decision) {
	start := c.now()
	defer func() {
		if rec := recover(); rec != nil {
			decision = c.errorDecision(file.Name, fmt.Errorf("panic: %v", rec), start)
		}
	}()

	if c.extractor == nil {
		return c.errorDecision(file.Name, errors.New("no text extractor configured"), start)
	}
	parsed, err := c.extractor.Extract(ctx, file)
	if err != nil {
		return c.errorDecision(file.Name, fmt.Errorf("extract %s: %w", file.Name, err), start)
	}
	if parsed.Filename == "" {
		parsed.Filename = file.Name
	}
	return c.ClassifyFile(ctx, parsed)
}

func (c *Classifier) errorDecision(filename string, err error, start time.Time) domain.Decision {
	slog.Error("classification_failed", "filename", filename, "error", err)
	return c.finalize(domain.Decision{
		Filename:        filename,
		PredictedType:   c.settings.CatchAllType,
		ConfidenceScore: 0,
		Method:          domain.MethodError,
		Reasoning:       "classification failed",
		Error:           err.Error(),
	}, start)
}

func (c *Classifier) finalize(decision domain.Decision, start time.Time) domain.Decision {
	decision.ConfidenceLevel = domain.LevelFor(decision.ConfidenceScore)
	decision.DecidedAt = c.now().UTC()
	c.observer.ObserveDecision(decision, c.now().Sub(start))
	slog.Debug("classification_decided",
		"filename", decision.Filename,
		"type", decision.PredictedType,
		"score", decision.ConfidenceScore,
		"method", string(decision.Method),
	)
	return decision
}

func (c *Classifier) oracleReady() bool {
	if c.oracle == nil {
		return false
	}
	if a, ok := c.oracle.(availability); ok {
		return a.Available()
	}
	return true
}

func (c *Classifier) consultOracle(ctx context.Context, doc domain.ParsedDocument) (verdict domain.OracleVerdict, err error) {
	start := c.now()
	outcome := "success"
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("oracle panic: %v", rec)
		}
		if err != nil && outcome == "success" {
			outcome = "failure"
		}
		c.observer.ObserveOracle(outcome, c.now().Sub(start))
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.settings.OracleTimeout)
	defer cancel()

	verdict, err = c.oracle.Classify(callCtx, doc.Text, doc.Filename, doc.Metadata)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		return domain.OracleVerdict{}, err
	}
	normalized, err := normalizeVerdict(verdict)
	if err != nil {
		outcome = "malformed"
		return domain.OracleVerdict{}, err
	}
	return normalized, nil
}

// normalizeVerdict checks required keys and rescales percentages: a
// confidence above 1 is read as 0-100.
func normalizeVerdict(v domain.OracleVerdict) (domain.OracleVerdict, error) {
	v.Type = strings.TrimSpace(v.Type)
	if v.Type == "" {
		return domain.OracleVerdict{}, domain.WrapError(domain.ErrMalformedVerdict, "oracle verdict", errors.New("missing type"))
	}
	if v.Confidence == nil || math.IsNaN(*v.Confidence) || math.IsInf(*v.Confidence, 0) {
		return domain.OracleVerdict{}, domain.WrapError(domain.ErrMalformedVerdict, "oracle verdict", errors.New("missing confidence"))
	}

	confidence := *v.Confidence
	if confidence > 1.0 {
		confidence /= 100
	}
	confidence = math.Max(0, math.Min(1, confidence))
	v.Confidence = &confidence
	return v, nil
}

func ruleDecision(best candidate, method domain.Method, reasoning string) domain.Decision {
	return domain.Decision{
		PredictedType:   best.Type,
		ConfidenceScore: best.Score,
		Method:          method,
		Reasoning:       reasoning,
	}
}

type noopObserver struct{}

func (noopObserver) ObserveDecision(domain.Decision, time.Duration) {}

func (noopObserver) ObserveOracle(string, time.Duration) {}
