package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/core/usecase"
)

type ingestorFake struct {
	got usecase.UploadInput
	err error
}

func (f *ingestorFake) Upload(_ context.Context, in usecase.UploadInput) (*domain.Document, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: 7, StoragePath: "abc_" + in.Filename}, nil
}

type processorFake struct {
	ids []int64
	err error
}

func (f *processorFake) ProcessByID(_ context.Context, id int64) error {
	f.ids = append(f.ids, id)
	return f.err
}

type filenamesFake struct {
	saved     bool
	overrides map[string]string
	err       error
}

func (f *filenamesFake) ResolveFilename(_ context.Context, id int64, overrides map[string]string) (string, error) {
	f.saved = true
	f.overrides = overrides
	return fmt.Sprintf("DOC-%d.PDF", id), f.err
}

func (f *filenamesFake) Preview(_ context.Context, id int64, overrides map[string]string) (string, error) {
	f.overrides = overrides
	return fmt.Sprintf("PREVIEW-%d.PDF", id), f.err
}

type attributesFake struct {
	values map[string]string
	err    error
}

func (f *attributesFake) Submit(_ context.Context, _ int64, values map[string]string) (string, error) {
	f.values = values
	if f.err != nil {
		return "", f.err
	}
	return "CED_202403.PDF", nil
}

type publisherFake struct {
	ids []int64
}

func (f *publisherFake) PublishClassifyRequested(_ context.Context, id int64) error {
	f.ids = append(f.ids, id)
	return nil
}

type fixture struct {
	ingestor   *ingestorFake
	processor  *processorFake
	filenames  *filenamesFake
	attributes *attributesFake
	publisher  *publisherFake
	closed     bool
	decisions  []domain.Decision
}

func newFixture() *fixture {
	return &fixture{
		ingestor:   &ingestorFake{},
		processor:  &processorFake{},
		filenames:  &filenamesFake{},
		attributes: &attributesFake{},
		publisher:  &publisherFake{},
	}
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(Deps{
		ClassifyDir: func(context.Context, string) ([]domain.Decision, error) {
			return f.decisions, nil
		},
		Open: func(context.Context) (*Services, func(), error) {
			return &Services{
				Ingestor:   f.ingestor,
				Processor:  f.processor,
				Filenames:  f.filenames,
				Attributes: f.attributes,
				Publisher:  f.publisher,
			}, func() { f.closed = true }, nil
		},
	})
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestClassifyPrintsJSONLinesWithoutText(t *testing.T) {
	f := newFixture()
	f.decisions = []domain.Decision{
		{Filename: "a.pdf", PredictedType: "CED", ConfidenceLevel: domain.ConfidenceHigh, Method: domain.MethodRule, ExtractedText: "netto"},
		{Filename: "b.pdf", PredictedType: "ALT", ConfidenceLevel: domain.ConfidenceLow, Method: domain.MethodRuleOnly},
		{Filename: "c.bin", Method: domain.MethodError, Error: "unsupported"},
	}

	out, err := f.run(t, "classify", "/tmp/in")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %s", len(lines), out)
	}
	var first domain.Decision
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first line: %v", err)
	}
	if first.PredictedType != "CED" || first.ExtractedText != "" {
		t.Fatalf("unexpected first decision: %+v", first)
	}
}

func TestClassifyMinLevelKeepsErrors(t *testing.T) {
	f := newFixture()
	f.decisions = []domain.Decision{
		{Filename: "a.pdf", ConfidenceLevel: domain.ConfidenceHigh, Method: domain.MethodRule},
		{Filename: "b.pdf", ConfidenceLevel: domain.ConfidenceLow, Method: domain.MethodRuleOnly},
		{Filename: "c.bin", Method: domain.MethodError},
	}

	out, err := f.run(t, "classify", "/tmp/in", "--min-level", "medium")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if strings.Contains(out, "b.pdf") || !strings.Contains(out, "a.pdf") || !strings.Contains(out, "c.bin") {
		t.Fatalf("unexpected filtered output: %s", out)
	}

	_, err = f.run(t, "classify", "/tmp/in", "--min-level", "extreme")
	if ExitCode(err) != exitInvalid {
		t.Fatalf("expected invalid input exit code, got %d (%v)", ExitCode(err), err)
	}
}

func TestResolvePreviewAndSave(t *testing.T) {
	f := newFixture()

	out, err := f.run(t, "resolve", "12", "--set", "mese=3", "--set", "reparto=AMM")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if strings.TrimSpace(out) != "PREVIEW-12.PDF" || f.filenames.saved {
		t.Fatalf("expected preview only, got %q saved=%v", out, f.filenames.saved)
	}
	if f.filenames.overrides["mese"] != "3" || f.filenames.overrides["reparto"] != "AMM" {
		t.Fatalf("unexpected overrides: %v", f.filenames.overrides)
	}
	if !f.closed {
		t.Fatalf("expected services to be released")
	}

	out, err = f.run(t, "resolve", "12", "--save")
	if err != nil {
		t.Fatalf("resolve --save: %v", err)
	}
	if strings.TrimSpace(out) != "DOC-12.PDF" || !f.filenames.saved || f.filenames.overrides != nil {
		t.Fatalf("expected saved resolution, got %q", out)
	}
}

func TestResolveRejectsBadArguments(t *testing.T) {
	f := newFixture()

	if _, err := f.run(t, "resolve", "abc"); ExitCode(err) != exitInvalid {
		t.Fatalf("expected invalid id, got %v", err)
	}
	if _, err := f.run(t, "resolve", "1", "--set", "=x"); ExitCode(err) != exitInvalid {
		t.Fatalf("expected invalid assignment, got %v", err)
	}
}

func TestAttrsSubmitsValues(t *testing.T) {
	f := newFixture()

	out, err := f.run(t, "attrs", "5", "--set", "mese=3", "--set", "note=")
	if err != nil {
		t.Fatalf("attrs: %v", err)
	}
	if f.attributes.values["mese"] != "3" {
		t.Fatalf("unexpected values: %v", f.attributes.values)
	}
	if v, ok := f.attributes.values["note"]; !ok || v != "" {
		t.Fatalf("expected empty value to be forwarded for clearing, got %v", f.attributes.values)
	}
	if !strings.Contains(out, "CED_202403.PDF") {
		t.Fatalf("expected filename in output, got %s", out)
	}

	if _, err := f.run(t, "attrs", "5"); ExitCode(err) != exitInvalid {
		t.Fatalf("expected missing --set to be invalid, got %v", err)
	}
}

func TestProcessMapsNotFound(t *testing.T) {
	f := newFixture()
	f.processor.err = domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id=9"))

	_, err := f.run(t, "process", "9")
	if ExitCode(err) != exitNotFound {
		t.Fatalf("expected not found exit code, got %d (%v)", ExitCode(err), err)
	}
	if len(f.processor.ids) != 1 || f.processor.ids[0] != 9 {
		t.Fatalf("unexpected processed ids: %v", f.processor.ids)
	}
}

func TestEnqueuePublishesEveryID(t *testing.T) {
	f := newFixture()

	out, err := f.run(t, "enqueue", "1", "2", "3")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(f.publisher.ids) != 3 || f.publisher.ids[2] != 3 {
		t.Fatalf("unexpected published ids: %v", f.publisher.ids)
	}
	if !strings.Contains(out, "Queued 3 document(s)") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestIngestUploadsFile(t *testing.T) {
	f := newFixture()
	path := filepath.Join(t.TempDir(), "cedolino marzo.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	out, err := f.run(t, "ingest", path, "--type", "CED", "--date", "2024-03-31")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if f.ingestor.got.Filename != "cedolino marzo.pdf" || f.ingestor.got.TypeCode != "CED" {
		t.Fatalf("unexpected upload input: %+v", f.ingestor.got)
	}
	if f.ingestor.got.ReferenceDate == nil || f.ingestor.got.ReferenceDate.Day() != 31 {
		t.Fatalf("expected parsed reference date, got %v", f.ingestor.got.ReferenceDate)
	}
	if !strings.Contains(out, "Document 7 stored") {
		t.Fatalf("unexpected output: %s", out)
	}

	if _, err := f.run(t, "ingest", path, "--date", "31/03/2024"); ExitCode(err) != exitInvalid {
		t.Fatalf("expected invalid date, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{errors.New("boom"), exitFailure},
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), exitInvalid},
		{domain.WrapError(domain.ErrEntityNotFound, "op", errors.New("x")), exitNotFound},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), exitUnavailable},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
