package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

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

	text, pages, err := plainText(raw)
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("extract pdf %s: %w", file.Name, err)
	}
	return domain.ParsedDocument{
		Filename: file.Name,
		Text:     text,
		Metadata: map[string]string{
			"format":     "pdf",
			"pages":      strconv.Itoa(pages),
			"size_bytes": strconv.Itoa(len(raw)),
		},
	}, nil
}

// plainText recovers from parser panics on malformed documents.
func plainText(data []byte) (text string, pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", 0, fmt.Errorf("pdf read: %w", err)
	}
	return collapseWhitespace(string(b)), r.NumPage(), nil
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
