package naming

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

type entityResolverFake struct {
	entities map[string]domain.Entity
	calls    int
	err      error
	panicMsg string
}

func (f *entityResolverFake) Resolve(_ context.Context, ref domain.EntityRef) (domain.Entity, error) {
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	entity, ok := f.entities[ref.String()]
	if !ok {
		return nil, domain.WrapError(domain.ErrEntityNotFound, "resolve", errors.New(ref.String()))
	}
	return entity, nil
}

func attr(code string, dataType domain.DataType, raw string) domain.AttributeValue {
	return domain.AttributeValue{
		Definition: domain.AttributeDefinition{Code: code, DataType: dataType},
		Raw:        raw,
	}
}

func entityAttr(code, kind, subtype, raw string) domain.AttributeValue {
	return domain.AttributeValue{
		Definition: domain.AttributeDefinition{
			Code:          code,
			DataType:      domain.DataTypeEntityRef,
			EntityKind:    kind,
			EntitySubtype: subtype,
		},
		Raw: raw,
	}
}

func newFixture() (*Resolver, *RecordView, *entityResolverFake) {
	refDate := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	doc := &domain.Document{
		ID:               42,
		Code:             "DOC-2024-0042",
		TypeCode:         "PRES",
		ReferenceDate:    &refDate,
		Description:      "Foglio Presenze Dicembre",
		OriginalFilename: "original.pdf",
		Client:           &domain.EntityRef{Kind: "anagrafiche", Subtype: "cliente", ID: "7"},
	}
	attrs := domain.AttributeSet{
		"anno_riferimento": attr("anno_riferimento", domain.DataTypeInt, "2024"),
		"mese_riferimento": attr("mese_riferimento", domain.DataTypeInt, "12"),
		"scadenza":         attr("scadenza", domain.DataTypeDate, "2024-06-30"),
		"protocollo":       attr("protocollo", domain.DataTypeString, ""),
		"dipendente":       entityAttr("dipendente", "anagrafiche", "dipendente", "11"),
		"note":             attr("note", domain.DataTypeString, "non una data"),
	}
	entities := &entityResolverFake{entities: map[string]domain.Entity{
		"anagrafiche:cliente#7": &domain.Record{
			Ref: domain.EntityRef{Kind: "anagrafiche", Subtype: "cliente", ID: "7"},
			Fields: map[string]any{
				"codice":     "CLI001",
				"anagrafica": domain.EntityRef{Kind: "anagrafiche", Subtype: "anagrafica", ID: "3"},
			},
		},
		"anagrafiche:anagrafica#3": &domain.Record{
			Ref: domain.EntityRef{Kind: "anagrafiche", Subtype: "anagrafica", ID: "3"},
			Fields: map[string]any{
				"codice_fiscale":  "12345678901",
				"ragione_sociale": "Àcme Servizi S.r.l.",
			},
		},
		"anagrafiche:dipendente#11": &domain.Record{
			Ref: domain.EntityRef{Kind: "anagrafiche", Subtype: "dipendente", ID: "11"},
			Fields: map[string]any{
				"codice":  "D0011",
				"cognome": "Rossi",
				"nome":    "Mario",
				"nome_completo": func() (string, error) {
					return "Rossi Mario", nil
				},
			},
		},
	}}
	return NewResolver(entities), NewRecordView(doc, &domain.DocumentType{Code: "PRES", Name: "Presenze"}, attrs), entities
}

func TestFilenameResolvesAttendanceScenario(t *testing.T) {
	resolver, view, _ := newFixture()

	got := resolver.Filename(context.Background(), Input{
		Pattern:          "Presenze_{attr:anno_riferimento}{attr:mese_riferimento}_{cliente.anagrafica.codice_fiscale}",
		Document:         view,
		OriginalFilename: "original.pdf",
	})
	if got != "Presenze_202412_12345678901.pdf" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestFilenameIsIdempotent(t *testing.T) {
	resolver, view, _ := newFixture()
	in := Input{
		Pattern:          "{tipo.codice}_{data_documento:%Y%m%d}_{slug:descrizione}_{attr:dipendente.codice}",
		Document:         view,
		OriginalFilename: "scan.PDF",
	}

	first := resolver.Filename(context.Background(), in)
	second := resolver.Filename(context.Background(), in)
	if first != second {
		t.Fatalf("expected identical results, got %q and %q", first, second)
	}
	if first != "PRES_20240305_foglio-pre_D0011.PDF" {
		t.Fatalf("unexpected filename %q", first)
	}
}

func TestExpandReplacesEveryToken(t *testing.T) {
	resolver, view, _ := newFixture()
	patterns := []string{
		"{id}-{tipo.codice}-{data_documento}",
		"{unknown}{attr:missing}{uattr:missing}{attrobj:bad}",
		"{attrobj:dipendente:anagrafiche:dipendente:inesistente}",
		"{cliente.non.esiste}{fascicolo.codice}{}",
		"{slug:attr:missing}{upper:x}{lower:Y}",
		"plain text without tokens",
	}
	for _, pattern := range patterns {
		got := resolver.Expand(context.Background(), pattern, view, nil)
		if strings.ContainsAny(got, "{}") {
			t.Fatalf("pattern %q left a raw token: %q", pattern, got)
		}
	}
}

func TestFilenameExtensionHandling(t *testing.T) {
	resolver, view, _ := newFixture()
	tests := []struct {
		name     string
		original string
		want     string
	}{
		{name: "pdf", original: "upload.pdf", want: ".pdf"},
		{name: "nested path", original: "/tmp/in/upload.tar.gz", want: ".gz"},
		{name: "no extension", original: "upload", want: ".bin"},
		{name: "empty", original: "", want: ".bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.Filename(context.Background(), Input{Pattern: "{id}", Document: view, OriginalFilename: tt.original})
			if !strings.HasSuffix(got, tt.want) {
				t.Fatalf("expected suffix %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFilenameFallsBackToDocumentCode(t *testing.T) {
	resolver, view, _ := newFixture()

	got := resolver.Filename(context.Background(), Input{
		Pattern:          "_-{attr:protocollo} {unknown}-_",
		Document:         view,
		OriginalFilename: "a.pdf",
	})
	if got != "DOC-2024-0042.pdf" {
		t.Fatalf("expected fallback to document code, got %q", got)
	}

	empty := NewRecordView(&domain.Document{ID: 9}, nil, nil)
	got = resolver.Filename(context.Background(), Input{Pattern: "", Document: empty, OriginalFilename: "a.txt"})
	if got != "DOC-9.txt" {
		t.Fatalf("expected id based fallback, got %q", got)
	}
}

func TestFilenameTrimsSeparators(t *testing.T) {
	resolver, view, _ := newFixture()

	got := resolver.Code(context.Background(), "__{attr:protocollo}_{attr:anno_riferimento} -", view, nil)
	if got != "2024" {
		t.Fatalf("expected trimmed code, got %q", got)
	}
}

func TestUnderscoreAttributeIsSuppressedWhenEmpty(t *testing.T) {
	resolver, view, _ := newFixture()

	got := resolver.Expand(context.Background(), "F24{uattr:protocollo}{uattr:anno_riferimento}", view, nil)
	if got != "F24_2024" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestDateFormatting(t *testing.T) {
	resolver, view, _ := newFixture()
	tests := []struct {
		pattern string
		want    string
	}{
		{pattern: "{data_documento}", want: "2024-03-05"},
		{pattern: "{data_documento:%Y%m%d}", want: "20240305"},
		{pattern: "{data_documento:%d/%m/%Y}", want: "05-03-2024"},
		{pattern: "{data_documento:%Y:%m}", want: "2024-03"},
		{pattern: "{attr:scadenza:%Y}", want: "2024"},
		{pattern: "{attr:scadenza}", want: "2024-06-30"},
		{pattern: "{attr:note:%Y}", want: "non una data"},
		{pattern: "{attr:anno_riferimento:%Y}", want: "2024"},
	}
	for _, tt := range tests {
		got := resolver.Expand(context.Background(), tt.pattern, view, nil)
		if got != tt.want {
			t.Fatalf("pattern %q: expected %q, got %q", tt.pattern, tt.want, got)
		}
	}
}

func TestDateFormattingParsesDateTimeStrings(t *testing.T) {
	resolver, _, _ := newFixture()
	view := NewRecordView(&domain.Document{ID: 1}, nil, domain.AttributeSet{
		"ricevuto": attr("ricevuto", domain.DataTypeDateTime, "2024-01-31T17:45:00"),
	})

	got := resolver.Expand(context.Background(), "{attr:ricevuto:%Y%m%d_%H%M}", view, nil)
	if got != "20240131_1745" {
		t.Fatalf("unexpected datetime rendering %q", got)
	}
}

func TestAttributeObjectToken(t *testing.T) {
	resolver, view, _ := newFixture()
	tests := []struct {
		pattern string
		want    string
	}{
		{pattern: "{attrobj:dipendente:anagrafiche:dipendente:codice}", want: "D0011"},
		{pattern: "{attrobj:dipendente:anagrafiche:dipendente:nome_completo}", want: "Rossi Mario"},
		{pattern: "{attrobj:dipendente:anagrafiche:sconosciuto:codice}", want: ""},
		{pattern: "{attrobj:protocollo:anagrafiche:dipendente:codice}", want: ""},
		{pattern: "{attrobj:dipendente:anagrafiche}", want: ""},
	}
	for _, tt := range tests {
		got := resolver.Expand(context.Background(), tt.pattern, view, nil)
		if got != tt.want {
			t.Fatalf("pattern %q: expected %q, got %q", tt.pattern, tt.want, got)
		}
	}
}

func TestAttributePathTraversesEntityReference(t *testing.T) {
	resolver, view, _ := newFixture()

	got := resolver.Expand(context.Background(), "{attr:dipendente.cognome}_{attr:dipendente}", view, nil)
	if got != "Rossi_11" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestSlugToken(t *testing.T) {
	resolver, view, _ := newFixture()
	tests := []struct {
		pattern string
		want    string
	}{
		{pattern: "{slug:descrizione}", want: "foglio-pre"},
		{pattern: "{slug:cliente.anagrafica.ragione_sociale}", want: "acme-servi"},
		{pattern: "{slug:attr:dipendente.nome_completo}", want: "rossi-mari"},
		{pattern: "{slug:attrobj:dipendente:anagrafiche:dipendente:cognome}", want: "rossi"},
	}
	for _, tt := range tests {
		got := resolver.Expand(context.Background(), tt.pattern, view, nil)
		if got != tt.want {
			t.Fatalf("pattern %q: expected %q, got %q", tt.pattern, tt.want, got)
		}
	}
}

func TestCaseTransformTokens(t *testing.T) {
	resolver, view, _ := newFixture()

	got := resolver.Expand(context.Background(), "{upper:cud}-{lower:F24}", view, nil)
	if got != "CUD-f24" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestOverridesTakePrecedenceOverStoredValues(t *testing.T) {
	resolver, view, _ := newFixture()

	got := resolver.Expand(context.Background(), "{attr:anno_riferimento}{attr:mese_riferimento}_{attr:nuovo}", view, map[string]string{
		"mese_riferimento": "01",
		"nuovo":            "X",
	})
	if got != "202401_X" {
		t.Fatalf("unexpected expansion %q", got)
	}

	// Overrides do not leak into later calls.
	got = resolver.Expand(context.Background(), "{attr:mese_riferimento}", view, nil)
	if got != "12" {
		t.Fatalf("expected stored value after override call, got %q", got)
	}
}

func TestOverrideKeepsDeclaredEntityType(t *testing.T) {
	resolver, view, entities := newFixture()
	entities.entities["anagrafiche:dipendente#12"] = &domain.Record{
		Ref:    domain.EntityRef{Kind: "anagrafiche", Subtype: "dipendente", ID: "12"},
		Fields: map[string]any{"codice": "D0012"},
	}

	got := resolver.Expand(context.Background(), "{attr:dipendente.codice}", view, map[string]string{"dipendente": "12"})
	if got != "D0012" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestResolvedValuesCannotIntroduceDirectories(t *testing.T) {
	resolver, _, _ := newFixture()
	view := NewRecordView(&domain.Document{ID: 1, Description: "a/b\\c"}, nil, nil)

	got := resolver.Expand(context.Background(), "{descrizione}", view, nil)
	if got != "a-b-c" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestResolvedValuesDropReservedCharacters(t *testing.T) {
	resolver, _, _ := newFixture()
	view := NewRecordView(&domain.Document{ID: 1, Description: `Fattura "12" <bozza>? A|B*`}, nil, nil)

	got := resolver.Filename(context.Background(), Input{Pattern: "{descrizione}", Document: view, OriginalFilename: "scan.pdf"})
	if got != "Fattura 12 bozza A-B.pdf" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestEntityResolverFailuresDegradeSingleToken(t *testing.T) {
	resolver, view, entities := newFixture()
	entities.err = errors.New("db down")

	got := resolver.Filename(context.Background(), Input{
		Pattern:          "Presenze_{attr:anno_riferimento}_{cliente.anagrafica.codice_fiscale}",
		Document:         view,
		OriginalFilename: "x.pdf",
	})
	if got != "Presenze_2024.pdf" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestEntityResolverPanicIsContained(t *testing.T) {
	resolver, view, entities := newFixture()
	entities.panicMsg = "boom"

	got := resolver.Expand(context.Background(), "{id}_{cliente.codice}", view, nil)
	if got != "42_" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestResolverWithoutEntityResolver(t *testing.T) {
	_, view, _ := newFixture()
	resolver := NewResolver(nil)

	got := resolver.Expand(context.Background(), "{cliente.codice}|{id}", view, nil)
	if got != "|42" {
		t.Fatalf("unexpected expansion %q", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{in: "Hello World", max: 0, want: "hello-world"},
		{in: "  Èlite -- Società  ", max: 0, want: "elite-societa"},
		{in: "a.b,c!d", max: 0, want: "abcd"},
		{in: "snake_case value", max: 0, want: "snake_case-value"},
		{in: "Mario Rossi S.r.l.", max: 10, want: "mario-ross"},
		{in: "", max: 10, want: ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in, tt.max); got != tt.want {
			t.Fatalf("Slugify(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
