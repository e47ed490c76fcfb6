package domain

import "time"

type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// LevelFor buckets a score: >=0.8 high, >=0.5 medium, otherwise low.
func LevelFor(score float64) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Rank orders levels low < medium < high.
func (l ConfidenceLevel) Rank() int {
	switch l {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// Method names the path that produced a decision's predicted type.
type Method string

const (
	MethodRule         Method = "rule"
	MethodLLM          Method = "llm"
	MethodRuleFallback Method = "rule_fallback"
	MethodRuleOnly     Method = "rule_only"
	MethodError        Method = "error"
)

type Decision struct {
	Filename          string             `json:"filename"`
	PredictedType     string             `json:"predicted_type"`
	ConfidenceScore   float64            `json:"confidence_score"`
	ConfidenceLevel   ConfidenceLevel    `json:"confidence_level"`
	Method            Method             `json:"method"`
	Reasoning         string             `json:"reasoning,omitempty"`
	RuleScores        map[string]float64 `json:"rule_scores,omitempty"`
	ExtractedText     string             `json:"extracted_text,omitempty"`
	ExtractedMetadata map[string]string  `json:"extracted_metadata,omitempty"`
	Error             string             `json:"error,omitempty"`
	DecidedAt         time.Time          `json:"decided_at"`
}

// OracleVerdict is the raw answer of an external classification oracle.
// Confidence is nil when the oracle omitted it.
type OracleVerdict struct {
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}
