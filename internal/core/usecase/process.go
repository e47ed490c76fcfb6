package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/core/ports"
)

// ClassifyDocumentUseCase classifies a stored document and persists the
// decision.
type ClassifyDocumentUseCase struct {
	repo       ports.DocumentRepository
	classifier ports.DocumentClassifier
}

func NewClassifyDocumentUseCase(
	repo ports.DocumentRepository,
	classifier ports.DocumentClassifier,
) *ClassifyDocumentUseCase {
	return &ClassifyDocumentUseCase{
		repo:       repo,
		classifier: classifier,
	}
}

func (uc *ClassifyDocumentUseCase) ProcessByID(ctx context.Context, documentID int64) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	decision, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	slog.Info("document_classified",
		"document_id", documentID,
		"type", decision.PredictedType,
		"method", string(decision.Method),
		"confidence", decision.ConfidenceScore,
	)

	if err := uc.markStatus(ctx, documentID, domain.StatusClassified, ""); err != nil {
		return fmt.Errorf("set status=classified: %w", err)
	}
	return nil
}

func (uc *ClassifyDocumentUseCase) processPipeline(ctx context.Context, documentID int64) (domain.Decision, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return domain.Decision{}, err
	}

	decision := uc.classify(ctx, doc)

	// A type set at ingest wins over the classifier's guess.
	assignType := doc.TypeCode == ""
	if !assignType && decision.Method != domain.MethodError && decision.PredictedType != doc.TypeCode {
		slog.Info("document_type_kept",
			"document_id", doc.ID,
			"type", doc.TypeCode,
			"predicted_type", decision.PredictedType,
		)
	}

	if err := uc.persistDecision(ctx, doc.ID, decision, assignType); err != nil {
		return domain.Decision{}, err
	}
	if decision.Method == domain.MethodError {
		return domain.Decision{}, domain.WrapError(domain.ErrInvalidInput, "classify document", errors.New(decision.Error))
	}
	return decision, nil
}

func (uc *ClassifyDocumentUseCase) loadDocument(ctx context.Context, documentID int64) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.StoragePath == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fetch document by id", errors.New("document has no stored file"))
	}
	return doc, nil
}

// classify goes through the batch path so extraction failures become an
// error decision instead of aborting.
func (uc *ClassifyDocumentUseCase) classify(ctx context.Context, doc *domain.Document) domain.Decision {
	ref := domain.FileRef{Name: doc.OriginalFilename, Path: doc.StoragePath}
	if ref.Name == "" {
		ref.Name = doc.StoragePath
	}
	return uc.classifier.ClassifyBatch(ctx, []domain.FileRef{ref})[0]
}

func (uc *ClassifyDocumentUseCase) persistDecision(ctx context.Context, documentID int64, decision domain.Decision, assignType bool) error {
	if err := uc.repo.SaveDecision(ctx, documentID, decision, assignType); err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return nil
}

func (uc *ClassifyDocumentUseCase) markStatus(ctx context.Context, documentID int64, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ClassifyDocumentUseCase) markFailed(ctx context.Context, documentID int64, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
