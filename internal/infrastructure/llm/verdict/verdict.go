// Package verdict holds the prompt and response contract shared by the
// LLM classification oracles.
package verdict

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

const maxSnippet = 4000

// Prompt asks for a single JSON object with type, confidence and reasoning.
// types, when given, restricts the answer to known document type codes.
func Prompt(text, filename string, metadata map[string]string, types []string) string {
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = truncateRunes(snippet[:maxSnippet])
	}

	var b strings.Builder
	b.WriteString(`You are a document classifier for an accounting studio archive.
Return strict JSON object with keys:
type (string, a document type code), confidence (number from 0 to 1), reasoning (string).
No markdown, no extra keys.
`)
	if len(types) > 0 {
		b.WriteString("\nAllowed type codes: ")
		b.WriteString(strings.Join(types, ", "))
		b.WriteString("\n")
	}
	b.WriteString("\nFilename: ")
	b.WriteString(filename)
	b.WriteString("\n")
	if len(metadata) > 0 {
		keys := make([]string, 0, len(metadata))
		for k := range metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Metadata:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, metadata[k])
		}
	}
	b.WriteString("\nDocument:\n")
	b.WriteString(snippet)
	return b.String()
}

// truncateRunes drops a trailing partial UTF-8 sequence.
func truncateRunes(s string) string {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if !utf8.FullRuneInString(s[i:]) {
				return s[:i]
			}
			break
		}
	}
	return s
}

type wire struct {
	Type       string          `json:"type"`
	Confidence json.RawMessage `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// Parse decodes an oracle reply. Missing keys are left for the classifier to
// reject; only unparseable payloads fail here.
func Parse(raw string) (domain.OracleVerdict, error) {
	var w wire
	if err := json.Unmarshal([]byte(ExtractJSONObject(raw)), &w); err != nil {
		return domain.OracleVerdict{}, domain.WrapError(domain.ErrMalformedVerdict, "parse verdict", err)
	}

	out := domain.OracleVerdict{
		Type:      strings.TrimSpace(w.Type),
		Reasoning: strings.TrimSpace(w.Reasoning),
	}
	confidence, err := parseConfidence(w.Confidence)
	if err != nil {
		return domain.OracleVerdict{}, domain.WrapError(domain.ErrMalformedVerdict, "parse verdict", err)
	}
	out.Confidence = confidence
	return out, nil
}

// parseConfidence accepts a JSON number or a numeric string such as "85%".
func parseConfidence(raw json.RawMessage) (*float64, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return &number, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, fmt.Errorf("confidence %s is neither number nor string", trimmed)
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "%")
	text = strings.Replace(text, ",", ".", 1)
	if text == "" {
		return nil, nil
	}
	number, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, errors.New("confidence is not numeric: " + text)
	}
	return &number, nil
}

// ExtractJSONObject trims prose around the outermost JSON object.
func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
