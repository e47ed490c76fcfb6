package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/core/naming"
	"github.com/kirillkom/studio-archive/internal/core/ports"
)

// RenameDocumentUseCase resolves a document's archive filename from its
// type's pattern.
type RenameDocumentUseCase struct {
	docs     ports.DocumentRepository
	types    ports.PatternProvider
	attrs    ports.AttributeRepository
	resolver *naming.Resolver
}

func NewRenameDocumentUseCase(
	docs ports.DocumentRepository,
	types ports.PatternProvider,
	attrs ports.AttributeRepository,
	resolver *naming.Resolver,
) *RenameDocumentUseCase {
	return &RenameDocumentUseCase{
		docs:     docs,
		types:    types,
		attrs:    attrs,
		resolver: resolver,
	}
}

// ResolveFilename resolves and persists the filename. A code generated from
// the type's code pattern is persisted too, so later resolutions reuse it.
func (uc *RenameDocumentUseCase) ResolveFilename(ctx context.Context, documentID int64, overrides map[string]string) (string, error) {
	res, err := uc.resolve(ctx, documentID, overrides)
	if err != nil {
		return "", err
	}
	if res.generatedCode != "" {
		if err := uc.docs.SaveCode(ctx, documentID, res.generatedCode); err != nil {
			return "", fmt.Errorf("save document code: %w", err)
		}
	}
	if err := uc.docs.SaveResolvedFilename(ctx, documentID, res.filename); err != nil {
		return "", fmt.Errorf("save resolved filename: %w", err)
	}
	slog.Info("filename_resolved", "document_id", documentID, "filename", res.filename)
	return res.filename, nil
}

// Preview resolves the filename without persisting it.
func (uc *RenameDocumentUseCase) Preview(ctx context.Context, documentID int64, overrides map[string]string) (string, error) {
	res, err := uc.resolve(ctx, documentID, overrides)
	if err != nil {
		return "", err
	}
	return res.filename, nil
}

type resolution struct {
	filename      string
	generatedCode string
}

func (uc *RenameDocumentUseCase) resolve(ctx context.Context, documentID int64, overrides map[string]string) (resolution, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return resolution{}, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.TypeCode == "" {
		return resolution{}, domain.WrapError(domain.ErrInvalidInput, "resolve filename", errors.New("document is not classified"))
	}

	docType, err := uc.types.DocumentType(ctx, doc.TypeCode)
	if err != nil {
		return resolution{}, fmt.Errorf("load document type %s: %w", doc.TypeCode, err)
	}

	attrs, err := uc.attrs.ListByDocument(ctx, doc.ID, doc.TypeCode)
	if err != nil {
		return resolution{}, fmt.Errorf("load attributes: %w", err)
	}

	var res resolution
	if doc.Code == "" && docType.CodePattern != "" {
		doc.Code = uc.resolver.Code(ctx, docType.CodePattern, naming.NewRecordView(doc, docType, attrs), overrides)
		res.generatedCode = doc.Code
	}

	res.filename = uc.resolver.Filename(ctx, naming.Input{
		Pattern:          docType.FilenamePattern,
		Document:         naming.NewRecordView(doc, docType, attrs),
		Overrides:        overrides,
		OriginalFilename: doc.OriginalFilename,
	})
	return res, nil
}
