package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

// Rules is the classifier and naming configuration file.
type Rules struct {
	Classifier    ClassifierRules        `yaml:"classifier"`
	DocumentTypes []DocumentTypeRules    `yaml:"document_types"`
	Entities      map[string]EntityRules `yaml:"entities"`
}

type ClassifierRules struct {
	Threshold         *float64                `yaml:"threshold"`
	CatchAllType      string                  `yaml:"catch_all_type"`
	DefaultConfidence *float64                `yaml:"default_confidence"`
	Types             map[string]KeywordRules `yaml:"types"`
}

type KeywordRules struct {
	FilenameKeywords []string `yaml:"filename_keywords"`
	ContentKeywords  []string `yaml:"content_keywords"`
}

type DocumentTypeRules struct {
	Code            string           `yaml:"code"`
	Name            string           `yaml:"name"`
	FilenamePattern string           `yaml:"filename_pattern"`
	CodePattern     string           `yaml:"code_pattern"`
	Attributes      []AttributeRules `yaml:"attributes"`
}

type AttributeRules struct {
	Code          string   `yaml:"code"`
	Label         string   `yaml:"label"`
	DataType      string   `yaml:"data_type"`
	Choices       []string `yaml:"choices"`
	EntityKind    string   `yaml:"entity_kind"`
	EntitySubtype string   `yaml:"entity_subtype"`
	Required      bool     `yaml:"required"`
}

type EntityRules struct {
	Table     string                   `yaml:"table"`
	KeyColumn string                   `yaml:"key_column"`
	Relations map[string]RelationRules `yaml:"relations"`
}

type RelationRules struct {
	Column  string `yaml:"column"`
	Kind    string `yaml:"kind"`
	Subtype string `yaml:"subtype"`
}

// LoadRules reads and validates a rules file. ${VAR} references are expanded
// from the environment before parsing.
func LoadRules(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(raw)
}

func ParseRules(raw []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &rules); err != nil {
		return Rules{}, domain.WrapError(domain.ErrInvalidInput, "parse rules", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, domain.WrapError(domain.ErrInvalidInput, "validate rules", err)
	}
	return rules, nil
}

func (r Rules) Validate() error {
	var problems []string
	c := r.Classifier
	if c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 1) {
		problems = append(problems, fmt.Sprintf("classifier.threshold %v outside [0,1]", *c.Threshold))
	}
	if c.DefaultConfidence != nil && (*c.DefaultConfidence < 0 || *c.DefaultConfidence > 1) {
		problems = append(problems, fmt.Sprintf("classifier.default_confidence %v outside [0,1]", *c.DefaultConfidence))
	}
	for code, kw := range c.Types {
		if strings.TrimSpace(code) == "" {
			problems = append(problems, "classifier.types has an empty type code")
		}
		for _, k := range append(append([]string{}, kw.FilenameKeywords...), kw.ContentKeywords...) {
			if strings.TrimSpace(k) == "" {
				problems = append(problems, fmt.Sprintf("classifier.types.%s has an empty keyword", code))
				break
			}
		}
	}

	seen := make(map[string]bool, len(r.DocumentTypes))
	for _, t := range r.DocumentTypes {
		if strings.TrimSpace(t.Code) == "" {
			problems = append(problems, "document_types entry without code")
			continue
		}
		if seen[t.Code] {
			problems = append(problems, fmt.Sprintf("document type %s declared twice", t.Code))
		}
		seen[t.Code] = true
		for _, a := range t.Attributes {
			if a.Code == "" {
				problems = append(problems, fmt.Sprintf("document type %s has an attribute without code", t.Code))
				continue
			}
			dt := domain.DataType(a.DataType)
			if !dt.Valid() {
				problems = append(problems, fmt.Sprintf("attribute %s.%s: unknown data_type %q", t.Code, a.Code, a.DataType))
			}
			if dt == domain.DataTypeEntityRef && (a.EntityKind == "" || a.EntitySubtype == "") {
				problems = append(problems, fmt.Sprintf("attribute %s.%s: entity attributes need entity_kind and entity_subtype", t.Code, a.Code))
			}
			if dt == domain.DataTypeChoice && len(a.Choices) == 0 {
				problems = append(problems, fmt.Sprintf("attribute %s.%s: choice attributes need choices", t.Code, a.Code))
			}
		}
	}

	for key, e := range r.Entities {
		if kind, subtype, ok := strings.Cut(key, ":"); !ok || kind == "" || subtype == "" {
			problems = append(problems, fmt.Sprintf("entity key %q must be kind:subtype", key))
		}
		if e.Table == "" {
			problems = append(problems, fmt.Sprintf("entity %s has no table", key))
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// DomainTypes converts the declared document types.
func (r Rules) DomainTypes() []domain.DocumentType {
	out := make([]domain.DocumentType, 0, len(r.DocumentTypes))
	for _, t := range r.DocumentTypes {
		out = append(out, domain.DocumentType{
			Code:            t.Code,
			Name:            t.Name,
			FilenamePattern: t.FilenamePattern,
			CodePattern:     t.CodePattern,
		})
	}
	return out
}

// DomainAttributes converts the declared attribute definitions of every type.
func (r Rules) DomainAttributes() []domain.AttributeDefinition {
	var out []domain.AttributeDefinition
	for _, t := range r.DocumentTypes {
		for _, a := range t.Attributes {
			out = append(out, domain.AttributeDefinition{
				TypeCode:      t.Code,
				Code:          a.Code,
				Label:         a.Label,
				DataType:      domain.DataType(a.DataType),
				Choices:       a.Choices,
				EntityKind:    a.EntityKind,
				EntitySubtype: a.EntitySubtype,
				Required:      a.Required,
			})
		}
	}
	return out
}
