package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

// DocumentView is the read-only data graph a filename pattern resolves against.
type DocumentView interface {
	ID() int64
	Code() string
	TypeCode() string
	ReferenceDate() (time.Time, bool)
	// Related returns a root value for dotted access: a static field, an
	// Entity, or an EntityRef to be loaded on traversal.
	Related(name string) (any, bool)
	Attribute(code string) (domain.AttributeValue, bool)
}

// EntityResolver loads related entities by kind, subtype and primary key.
type EntityResolver interface {
	Resolve(ctx context.Context, ref domain.EntityRef) (domain.Entity, error)
}

// PatternProvider supplies per-type naming patterns.
type PatternProvider interface {
	DocumentType(ctx context.Context, code string) (*domain.DocumentType, error)
}

// ClassificationOracle is the external LLM collaborator.
type ClassificationOracle interface {
	Classify(ctx context.Context, text, filename string, metadata map[string]string) (domain.OracleVerdict, error)
}

// TextExtractor parses a file into text and metadata.
type TextExtractor interface {
	Extract(ctx context.Context, file domain.FileRef) (domain.ParsedDocument, error)
}

// DecisionObserver receives every finalized decision.
type DecisionObserver interface {
	ObserveDecision(decision domain.Decision, elapsed time.Duration)
	ObserveOracle(outcome string, elapsed time.Duration)
}

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus, errMessage string) error
	// SaveDecision stores the classifier output. The predicted type becomes
	// the document's type only when assignType is set.
	SaveDecision(ctx context.Context, id int64, decision domain.Decision, assignType bool) error
	SaveResolvedFilename(ctx context.Context, id int64, filename string) error
	SaveCode(ctx context.Context, id int64, code string) error
}

// AttributeRepository reads and supersedes dynamic attribute values.
type AttributeRepository interface {
	Definitions(ctx context.Context, typeCode string) ([]domain.AttributeDefinition, error)
	ListByDocument(ctx context.Context, documentID int64, typeCode string) (domain.AttributeSet, error)
	Upsert(ctx context.Context, documentID int64, values []domain.AttributeValue) error
}

// ObjectStorage opens stored source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) string
}

// MessageQueue publishes/consumes classification requests.
type MessageQueue interface {
	PublishClassifyRequested(ctx context.Context, documentID int64) error
	SubscribeClassifyRequested(ctx context.Context, handler func(context.Context, int64) error) error
}
