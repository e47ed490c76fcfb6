package plaintext

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/core/ports"
	"github.com/kirillkom/studio-archive/internal/infrastructure/extractor"
)

type Extractor struct {
	storage  ports.ObjectStorage
	maxBytes int64
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage, maxBytes: extractor.DefaultMaxBytes}
}

func (e *Extractor) Extract(ctx context.Context, file domain.FileRef) (domain.ParsedDocument, error) {
	raw, err := extractor.ReadSource(ctx, e.storage, file, e.maxBytes)
	if err != nil {
		return domain.ParsedDocument{}, err
	}

	if !utf8.Valid(raw) {
		return domain.ParsedDocument{}, fmt.Errorf("unsupported binary content in text file: %s", file.Name)
	}

	text := strings.TrimSpace(strings.TrimPrefix(string(raw), "\ufeff"))
	return domain.ParsedDocument{
		Filename: file.Name,
		Text:     text,
		Metadata: map[string]string{
			"format":     "text",
			"size_bytes": strconv.Itoa(len(raw)),
			"lines":      strconv.Itoa(countLines(text)),
		},
	}, nil
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}
