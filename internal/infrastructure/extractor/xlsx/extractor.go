package xlsx

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

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

// Extract flattens every sheet: cells tab-separated, rows newline-separated,
// each sheet introduced by its name.
func (e *Extractor) Extract(ctx context.Context, file domain.FileRef) (domain.ParsedDocument, error) {
	raw, err := extractor.ReadSource(ctx, e.storage, file, e.maxBytes)
	if err != nil {
		return domain.ParsedDocument{}, err
	}

	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("open workbook %s: %w", file.Name, err)
	}
	defer book.Close()

	var b strings.Builder
	sheets := book.GetSheetList()
	rowCount := 0
	for _, sheet := range sheets {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return domain.ParsedDocument{}, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		b.WriteString("# ")
		b.WriteString(sheet)
		b.WriteString("\n")
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
			rowCount++
		}
	}

	metadata := map[string]string{
		"format": "xlsx",
		"sheets": strconv.Itoa(len(sheets)),
		"rows":   strconv.Itoa(rowCount),
	}
	if props, err := book.GetDocProps(); err == nil && props != nil {
		if props.Title != "" {
			metadata["title"] = props.Title
		}
		if props.Creator != "" {
			metadata["creator"] = props.Creator
		}
	}

	return domain.ParsedDocument{
		Filename: file.Name,
		Text:     strings.TrimSpace(b.String()),
		Metadata: metadata,
	}, nil
}
