package verdict

import (
	"strings"
	"testing"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantType   string
		wantConf   *float64
		wantReason string
	}{
		{name: "plain", raw: `{"type":"CED","confidence":0.91,"reasoning":"payslip"}`, wantType: "CED", wantConf: f(0.91), wantReason: "payslip"},
		{name: "prose around", raw: "Sure!\n{\"type\": \"F24\", \"confidence\": 85}\nthanks", wantType: "F24", wantConf: f(85)},
		{name: "percent string", raw: `{"type":"F24","confidence":"72%"}`, wantType: "F24", wantConf: f(72)},
		{name: "comma decimal", raw: `{"type":"F24","confidence":"0,5"}`, wantType: "F24", wantConf: f(0.5)},
		{name: "missing confidence", raw: `{"type":"F24"}`, wantType: "F24"},
		{name: "null confidence", raw: `{"type":"F24","confidence":null}`, wantType: "F24"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got.Type != tt.wantType || got.Reasoning != tt.wantReason {
				t.Fatalf("unexpected verdict %+v", got)
			}
			switch {
			case tt.wantConf == nil && got.Confidence != nil:
				t.Fatalf("expected nil confidence, got %v", *got.Confidence)
			case tt.wantConf != nil && (got.Confidence == nil || *got.Confidence != *tt.wantConf):
				t.Fatalf("expected confidence %v, got %v", *tt.wantConf, got.Confidence)
			}
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"no json here", `{"type":"F24","confidence":"high"}`, `{"type":"F24","confidence":[1]}`} {
		if _, err := Parse(raw); !domain.IsKind(err, domain.ErrMalformedVerdict) {
			t.Fatalf("Parse(%q) expected ErrMalformedVerdict, got %v", raw, err)
		}
	}
}

func TestPromptIncludesContext(t *testing.T) {
	prompt := Prompt(strings.Repeat("è", 3000), "scan.pdf", map[string]string{"pages": "2", "author": "x"}, []string{"CED", "F24"})

	for _, fragment := range []string{"Allowed type codes: CED, F24", "Filename: scan.pdf", "- author: x\n- pages: 2"} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("expected %q in prompt", fragment)
		}
	}
	doc := prompt[strings.Index(prompt, "Document:\n")+len("Document:\n"):]
	if len(doc) > maxSnippet || !strings.HasSuffix(doc, "è") {
		t.Fatalf("expected snippet truncated on a rune boundary, got %d bytes", len(doc))
	}
}

func f(v float64) *float64 { return &v }

func TestTruncateRunesDropsPartialSequence(t *testing.T) {
	s := "abè"
	if got := truncateRunes(s[:3]); got != "ab" {
		t.Fatalf("expected partial rune dropped, got %q", got)
	}
	if got := truncateRunes(s); got != s {
		t.Fatalf("expected complete string kept, got %q", got)
	}
}
