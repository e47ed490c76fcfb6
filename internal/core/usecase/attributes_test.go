package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

type filenameServiceFake struct {
	overrides map[string]string
	name      string
	err       error
}

func (f *filenameServiceFake) ResolveFilename(_ context.Context, _ int64, overrides map[string]string) (string, error) {
	f.overrides = overrides
	return f.name, f.err
}

func (f *filenameServiceFake) Preview(context.Context, int64, map[string]string) (string, error) {
	return f.name, f.err
}

func TestSubmitUpsertsAndResolves(t *testing.T) {
	docs := &documentRepoFake{doc: &domain.Document{ID: 42, TypeCode: "PRES"}}
	attrs := &attributeRepoFake{defs: attendanceDefs()}
	names := &filenameServiceFake{name: "PRES_202403_AMM_4.pdf"}
	uc := NewAttributesUseCase(docs, attrs, names)

	name, err := uc.Submit(context.Background(), 42, map[string]string{"mese": " 4 ", "reparto": "AMM"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if name != "PRES_202403_AMM_4.pdf" {
		t.Fatalf("unexpected name %q", name)
	}
	if len(attrs.upserted) != 2 || attrs.upserted[0].Code() != "mese" || attrs.upserted[0].Raw != "4" {
		t.Fatalf("unexpected upserted rows %+v", attrs.upserted)
	}
	if names.overrides["reparto"] != "AMM" {
		t.Fatalf("expected submitted values passed as overrides, got %v", names.overrides)
	}
}

func TestSubmitRejectsInvalidValues(t *testing.T) {
	docs := &documentRepoFake{doc: &domain.Document{ID: 42, TypeCode: "PRES"}}
	attrs := &attributeRepoFake{defs: attendanceDefs()}
	names := &filenameServiceFake{}
	uc := NewAttributesUseCase(docs, attrs, names)

	_, err := uc.Submit(context.Background(), 42, map[string]string{"mese": "marzo", "reparto": "HR", "colore": "blu"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	for _, fragment := range []string{"unknown attribute \"colore\"", "attribute mese", "attribute reparto"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
	if len(attrs.upserted) != 0 || names.overrides != nil {
		t.Fatalf("nothing must be stored or resolved on validation failure")
	}
}

func TestSubmitRequiresClassifiedDocument(t *testing.T) {
	uc := NewAttributesUseCase(&documentRepoFake{doc: &domain.Document{ID: 42}}, &attributeRepoFake{}, &filenameServiceFake{})

	if _, err := uc.Submit(context.Background(), 42, map[string]string{"mese": "4"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSubmitPropagatesUpsertError(t *testing.T) {
	docs := &documentRepoFake{doc: &domain.Document{ID: 42, TypeCode: "PRES"}}
	attrs := &failingUpsertRepo{attributeRepoFake: &attributeRepoFake{defs: attendanceDefs()}}
	uc := NewAttributesUseCase(docs, attrs, &filenameServiceFake{})

	_, err := uc.Submit(context.Background(), 42, map[string]string{"note": "x"})
	if err == nil || !strings.Contains(err.Error(), "upsert attributes") {
		t.Fatalf("expected upsert error, got %v", err)
	}
}

type failingUpsertRepo struct {
	*attributeRepoFake
}

func (f *failingUpsertRepo) Upsert(context.Context, int64, []domain.AttributeValue) error {
	return errors.New("constraint violation")
}
