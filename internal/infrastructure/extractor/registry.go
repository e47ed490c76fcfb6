// Package extractor dispatches text extraction by file extension.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/core/ports"
)

// DefaultMaxBytes bounds how much of a source file is read into memory.
const DefaultMaxBytes = 32 << 20

// Registry maps lowercased extensions (with the dot) to extractors.
type Registry struct {
	byExt map[string]ports.TextExtractor
}

func NewRegistry(byExt map[string]ports.TextExtractor) *Registry {
	normalized := make(map[string]ports.TextExtractor, len(byExt))
	for ext, ex := range byExt {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[ext] = ex
	}
	return &Registry{byExt: normalized}
}

func (r *Registry) Extract(ctx context.Context, file domain.FileRef) (domain.ParsedDocument, error) {
	ext := strings.ToLower(filepath.Ext(file.Name))
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(file.Path))
	}
	ex, ok := r.byExt[ext]
	if !ok {
		return domain.ParsedDocument{}, domain.WrapError(
			domain.ErrInvalidInput,
			"extract text",
			fmt.Errorf("unsupported file extension %q for %s", ext, file.Name),
		)
	}
	doc, err := ex.Extract(ctx, file)
	if err != nil {
		return domain.ParsedDocument{}, err
	}
	if doc.Filename == "" {
		doc.Filename = file.Name
	}
	return doc, nil
}

// Extensions lists the supported extensions, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ReadSource reads a stored file, failing when it exceeds maxBytes.
func ReadSource(ctx context.Context, storage ports.ObjectStorage, file domain.FileRef, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	reader, err := storage.Open(ctx, file.Path)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	if int64(len(raw)) > maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read source document", fmt.Errorf("%s exceeds %d bytes", file.Name, maxBytes))
	}
	return raw, nil
}
