package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/infrastructure/resilience"
)

const requestIDHeader = "Nats-Msg-Id"

type Queue struct {
	conn       *nats.Conn
	subject    string
	queueGroup string
	executor   *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	queueGroup := options.QueueGroup
	if queueGroup == "" {
		queueGroup = "classifiers"
	}

	conn, err := nats.Connect(
		url,
		nats.Name("studio-archive"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:       conn,
		subject:    subject,
		queueGroup: queueGroup,
		executor:   options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

type classifyRequest struct {
	DocumentID int64  `json:"document_id"`
	RequestID  string `json:"request_id"`
}

func (q *Queue) PublishClassifyRequested(ctx context.Context, documentID int64) error {
	msg, err := newClassifyMsg(q.subject, documentID)
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (q *Queue) SubscribeClassifyRequested(ctx context.Context, handler func(context.Context, int64) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		req, err := decodeClassifyMsg(msg)
		if err != nil {
			slog.Error("classify_request_invalid", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, req.DocumentID); err != nil {
			slog.Error("classify_request_failed",
				"document_id", req.DocumentID,
				"request_id", req.RequestID,
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func newClassifyMsg(subject string, documentID int64) (*nats.Msg, error) {
	if documentID <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "nats publish", fmt.Errorf("invalid document id %d", documentID))
	}
	req := classifyRequest{DocumentID: documentID, RequestID: uuid.NewString()}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal classify request: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Header.Set(requestIDHeader, req.RequestID)
	msg.Data = payload
	return msg, nil
}

// decodeClassifyMsg accepts the JSON envelope or a bare decimal id.
func decodeClassifyMsg(msg *nats.Msg) (classifyRequest, error) {
	data := strings.TrimSpace(string(msg.Data))
	var req classifyRequest
	if strings.HasPrefix(data, "{") {
		if err := json.Unmarshal([]byte(data), &req); err != nil {
			return classifyRequest{}, fmt.Errorf("decode classify request: %w", err)
		}
	} else {
		id, err := strconv.ParseInt(data, 10, 64)
		if err != nil {
			return classifyRequest{}, fmt.Errorf("decode classify request: %w", err)
		}
		req.DocumentID = id
	}
	if req.DocumentID <= 0 {
		return classifyRequest{}, fmt.Errorf("decode classify request: invalid document id %d", req.DocumentID)
	}
	if req.RequestID == "" && msg.Header != nil {
		req.RequestID = msg.Header.Get(requestIDHeader)
	}
	return req, nil
}
