package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

// ClassifyHTTP classifies errors of HTTP collaborators. statusOf returns the
// response status carried by err, or 0 when there was no response.
func ClassifyHTTP(err error, statusOf func(error) int) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if IsCircuitOpen(err) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if statusOf != nil {
		if status := statusOf(err); status > 0 {
			if RetryableStatus(status) {
				return ErrorClassification{Retryable: true, RecordFailure: true}
			}
			// 4xx answers mean the collaborator is healthy.
			return ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

func RetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// WrapTemporary tags err as domain.ErrTemporary when it is worth retrying
// later, so callers can tell an outage from a bad request.
func WrapTemporary(operation string, err error, classify ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classify == nil {
		classify = defaultClassifier
	}
	if classify(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
