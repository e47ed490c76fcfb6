// Package cli is the docctl command tree for operating the archive by hand.
package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/core/ports"
	"github.com/kirillkom/studio-archive/internal/core/usecase"
)

// Ingestor stores a new document and queues it for classification.
type Ingestor interface {
	Upload(ctx context.Context, in usecase.UploadInput) (*domain.Document, error)
}

// Publisher requests classification of an existing document.
type Publisher interface {
	PublishClassifyRequested(ctx context.Context, documentID int64) error
}

// Services are the database-backed collaborators. They are opened lazily so
// that classify can run against a plain directory without postgres.
type Services struct {
	Ingestor   Ingestor
	Processor  ports.DocumentProcessor
	Filenames  ports.FilenameService
	Attributes ports.AttributeSubmitter
	Publisher  Publisher
}

type Deps struct {
	// ClassifyDir classifies every regular file under dir.
	ClassifyDir func(ctx context.Context, dir string) ([]domain.Decision, error)
	// Open connects the archive services; the returned func releases them.
	Open func(ctx context.Context) (*Services, func(), error)
}

func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "docctl",
		Short:         "Classify and name archive documents",
		Long:          `docctl classifies files with keyword rules and an optional LLM oracle, and resolves archive filenames from per-type patterns.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newClassifyCommand(deps),
		newIngestCommand(deps),
		newProcessCommand(deps),
		newResolveCommand(deps),
		newAttrsCommand(deps),
		newEnqueueCommand(deps),
	)
	return root
}

func withServices(cmd *cobra.Command, deps Deps, fn func(*Services) error) error {
	if deps.Open == nil {
		return errors.New("archive services not configured")
	}
	services, closeFn, err := deps.Open(cmd.Context())
	if err != nil {
		return fmt.Errorf("open archive services: %w", err)
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(services)
}

func parseDocumentID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse document id", fmt.Errorf("%q is not a positive integer", raw))
	}
	return id, nil
}

// parseAssignments turns repeated code=value flags into a map. A later
// assignment of the same code wins.
func parseAssignments(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		code, value, ok := strings.Cut(pair, "=")
		code = strings.TrimSpace(code)
		if !ok || code == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse assignment", fmt.Errorf("expected code=value, got %q", pair))
		}
		out[code] = value
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
