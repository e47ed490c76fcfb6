package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/core/ports"
)

// AttributesUseCase stores submitted attribute values and renames the
// document in the same operation.
type AttributesUseCase struct {
	docs     ports.DocumentRepository
	attrs    ports.AttributeRepository
	filename ports.FilenameService
}

func NewAttributesUseCase(
	docs ports.DocumentRepository,
	attrs ports.AttributeRepository,
	filename ports.FilenameService,
) *AttributesUseCase {
	return &AttributesUseCase{
		docs:     docs,
		attrs:    attrs,
		filename: filename,
	}
}

// Submit validates values against the document type's definitions, upserts
// them and returns the resolved filename.
func (uc *AttributesUseCase) Submit(ctx context.Context, documentID int64, values map[string]string) (string, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.TypeCode == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "submit attributes", errors.New("document is not classified"))
	}

	defs, err := uc.attrs.Definitions(ctx, doc.TypeCode)
	if err != nil {
		return "", fmt.Errorf("load attribute definitions: %w", err)
	}

	rows, err := validateSubmission(defs, values)
	if err != nil {
		return "", err
	}

	if len(rows) > 0 {
		if err := uc.attrs.Upsert(ctx, documentID, rows); err != nil {
			return "", fmt.Errorf("upsert attributes: %w", err)
		}
	}

	return uc.filename.ResolveFilename(ctx, documentID, values)
}

func validateSubmission(defs []domain.AttributeDefinition, values map[string]string) ([]domain.AttributeValue, error) {
	byCode := make(map[string]domain.AttributeDefinition, len(defs))
	for _, def := range defs {
		byCode[def.Code] = def
	}

	codes := make([]string, 0, len(values))
	for code := range values {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var problems []string
	rows := make([]domain.AttributeValue, 0, len(values))
	for _, code := range codes {
		def, ok := byCode[code]
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown attribute %q", code))
			continue
		}
		raw := strings.TrimSpace(values[code])
		if err := def.ValidateRaw(raw); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		rows = append(rows, domain.AttributeValue{Definition: def, Raw: raw})
	}
	if len(problems) > 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit attributes", errors.New(strings.Join(problems, "; ")))
	}
	return rows, nil
}
