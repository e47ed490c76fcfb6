package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusClassified DocumentStatus = "classified"
	StatusFailed     DocumentStatus = "failed"
)

// Document is the persisted archive record. Related entities are kept as
// references and loaded lazily through an EntityResolver.
type Document struct {
	ID               int64          `json:"id"`
	Code             string         `json:"code"`
	TypeCode         string         `json:"type_code,omitempty"`
	ReferenceDate    *time.Time     `json:"reference_date,omitempty"`
	Description      string         `json:"description,omitempty"`
	OriginalFilename string         `json:"original_filename"`
	StoragePath      string         `json:"storage_path"`
	ResolvedFilename string         `json:"resolved_filename,omitempty"`
	Client           *EntityRef     `json:"client,omitempty"`
	FileSet          *EntityRef     `json:"file_set,omitempty"`
	Status           DocumentStatus `json:"status"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// DocumentType carries the per-type naming configuration.
type DocumentType struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	FilenamePattern string `json:"filename_pattern,omitempty"`
	CodePattern     string `json:"code_pattern,omitempty"`
}

// FileRef points at a file that has not been parsed yet.
type FileRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ParsedDocument is what an extractor hands to the classifier.
type ParsedDocument struct {
	Filename string            `json:"filename"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
