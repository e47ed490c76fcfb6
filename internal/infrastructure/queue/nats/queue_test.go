package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

func TestClassifyMsgRoundTripCarriesRequestID(t *testing.T) {
	msg, err := newClassifyMsg("documents.classify", 42)
	if err != nil {
		t.Fatalf("newClassifyMsg() error = %v", err)
	}
	header := msg.Header.Get(requestIDHeader)
	if _, err := uuid.Parse(header); err != nil {
		t.Fatalf("expected uuid request id header, got %q", header)
	}

	req, err := decodeClassifyMsg(msg)
	if err != nil {
		t.Fatalf("decodeClassifyMsg() error = %v", err)
	}
	if req.DocumentID != 42 || req.RequestID != header {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestDecodeClassifyMsgAcceptsBareID(t *testing.T) {
	msg := nats.NewMsg("documents.classify")
	msg.Header.Set(requestIDHeader, "req-1")
	msg.Data = []byte(" 17\n")

	req, err := decodeClassifyMsg(msg)
	if err != nil {
		t.Fatalf("decodeClassifyMsg() error = %v", err)
	}
	if req.DocumentID != 17 || req.RequestID != "req-1" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestDecodeClassifyMsgRejectsGarbage(t *testing.T) {
	for _, payload := range []string{"", "abc", `{"document_id":0}`, `{"document_id":`} {
		if _, err := decodeClassifyMsg(&nats.Msg{Data: []byte(payload)}); err == nil {
			t.Fatalf("expected error for payload %q", payload)
		}
	}
}

func TestNewClassifyMsgRejectsInvalidID(t *testing.T) {
	if _, err := newClassifyMsg("s", 0); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestClassifyNATSError(t *testing.T) {
	if c := classifyNATSError(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("context cancellation must not be retried or recorded: %+v", c)
	}
	if c := classifyNATSError(nats.ErrNoServers); !c.Retryable || !c.RecordFailure {
		t.Fatalf("no servers must be retryable: %+v", c)
	}
	if c := classifyNATSError(errors.New("bad subject")); c.Retryable {
		t.Fatalf("unknown errors must not be retried: %+v", c)
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	err := wrapTemporaryIfNeeded(nats.ErrConnectionClosed)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if err := wrapTemporaryIfNeeded(gobreaker.ErrOpenState); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected open circuit to be temporary, got %v", err)
	}
	plain := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(plain); got != plain {
		t.Fatalf("expected error passed through, got %v", got)
	}
}
