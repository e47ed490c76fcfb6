package ports

import (
	"context"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

// DocumentClassifier is the inbound contract of the hybrid classifier.
type DocumentClassifier interface {
	ClassifyFile(ctx context.Context, doc domain.ParsedDocument) domain.Decision
	ClassifyBatch(ctx context.Context, files []domain.FileRef) []domain.Decision
}

// DocumentProcessor classifies a stored document and persists the decision.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID int64) error
}

// FilenameService resolves and persists the archive filename of a document.
type FilenameService interface {
	ResolveFilename(ctx context.Context, documentID int64, overrides map[string]string) (string, error)
	Preview(ctx context.Context, documentID int64, overrides map[string]string) (string, error)
}

// AttributeSubmitter stores dynamic attribute values submitted for a document.
type AttributeSubmitter interface {
	Submit(ctx context.Context, documentID int64, values map[string]string) (string, error)
}
