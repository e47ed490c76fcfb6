package naming

import (
	"time"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

// RecordView exposes a persisted document and its attribute set as a
// DocumentView.
type RecordView struct {
	doc     *domain.Document
	docType *domain.DocumentType
	attrs   domain.AttributeSet
}

func NewRecordView(doc *domain.Document, docType *domain.DocumentType, attrs domain.AttributeSet) *RecordView {
	if doc == nil {
		doc = &domain.Document{}
	}
	return &RecordView{doc: doc, docType: docType, attrs: attrs}
}

func (v *RecordView) ID() int64 { return v.doc.ID }

func (v *RecordView) Code() string { return v.doc.Code }

func (v *RecordView) TypeCode() string { return v.doc.TypeCode }

func (v *RecordView) ReferenceDate() (time.Time, bool) {
	if v.doc.ReferenceDate == nil || v.doc.ReferenceDate.IsZero() {
		return time.Time{}, false
	}
	return *v.doc.ReferenceDate, true
}

func (v *RecordView) Attribute(code string) (domain.AttributeValue, bool) {
	attr, ok := v.attrs[code]
	return attr, ok
}

func (v *RecordView) Related(name string) (any, bool) {
	switch name {
	case "id":
		return v.doc.ID, true
	case "codice", "code":
		return v.doc.Code, true
	case "descrizione", "description":
		return v.doc.Description, true
	case "nome_file_originale", "original_filename":
		return v.doc.OriginalFilename, true
	case "data_documento", "reference_date":
		if t, ok := v.ReferenceDate(); ok {
			return t, true
		}
		return nil, false
	case "tipo", "type":
		return v.typeRecord(), true
	case "cliente", "client":
		if v.doc.Client == nil {
			return nil, false
		}
		return *v.doc.Client, true
	case "fascicolo", "file_set":
		if v.doc.FileSet == nil {
			return nil, false
		}
		return *v.doc.FileSet, true
	default:
		return nil, false
	}
}

func (v *RecordView) typeRecord() *domain.Record {
	fields := map[string]any{"codice": v.doc.TypeCode, "code": v.doc.TypeCode}
	if v.docType != nil {
		fields["nome"] = v.docType.Name
		fields["name"] = v.docType.Name
	}
	return &domain.Record{
		Ref:    domain.EntityRef{Kind: "documenti", Subtype: "tipodocumento", ID: v.doc.TypeCode},
		Fields: fields,
	}
}
