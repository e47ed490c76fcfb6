package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// UploadInput describes a new archive document. Code and TypeCode are
// optional: the classifier and the code pattern fill them later.
type UploadInput struct {
	Filename      string
	Code          string
	TypeCode      string
	Description   string
	ReferenceDate *time.Time
	Body          io.Reader
}

// Upload stores the file, records the document and requests classification.
func (uc *IngestDocumentUseCase) Upload(ctx context.Context, in UploadInput) (*domain.Document, error) {
	if strings.TrimSpace(in.Filename) == "" || in.Body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("filename and body are required"))
	}

	storageKey := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(in.Filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, in.Body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		Code:             strings.TrimSpace(in.Code),
		TypeCode:         strings.TrimSpace(in.TypeCode),
		ReferenceDate:    in.ReferenceDate,
		Description:      in.Description,
		OriginalFilename: filepath.Base(in.Filename),
		StoragePath:      storageKey,
		Status:           domain.StatusUploaded,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if uc.queue != nil {
		if err := uc.queue.PublishClassifyRequested(ctx, doc.ID); err != nil {
			return nil, fmt.Errorf("publish classify request: %w", err)
		}
	}

	return doc, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
