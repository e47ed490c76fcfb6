package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/studio-archive/internal/core/domain"
)

func chatServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Options{}); !domain.IsKind(err, domain.ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestClassifyRequestsJSONObject(t *testing.T) {
	var payload map[string]any
	server := chatServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"type\":\"CED\",\"confidence\":0.92,\"reasoning\":\"netto in busta\"}"}}]
	}`, &payload)
	defer server.Close()

	oracle, err := New(Options{APIKey: "test-key", BaseURL: server.URL + "/v1/", Model: "gpt-test", Types: []string{"CED"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got, err := oracle.Classify(context.Background(), "retribuzione netta", "busta.pdf", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Type != "CED" || got.Confidence == nil || *got.Confidence != 0.92 {
		t.Fatalf("unexpected verdict %+v", got)
	}

	if payload["model"] != "gpt-test" {
		t.Fatalf("unexpected model %v", payload["model"])
	}
	format, _ := payload["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", payload["response_format"])
	}
	messages, _ := payload["messages"].([]any)
	if len(messages) != 1 || !strings.Contains(messages[0].(map[string]any)["content"].(string), "retribuzione netta") {
		t.Fatalf("unexpected messages %v", messages)
	}
}

func TestClassifyMapsRateLimitToTemporary(t *testing.T) {
	server := chatServer(t, http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, nil)
	defer server.Close()

	oracle, _ := New(Options{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	_, err := oracle.Classify(context.Background(), "text", "a.pdf", nil)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if !oracle.Available() {
		t.Fatalf("oracle without executor is always available")
	}
}

func TestClassifyWithoutChoicesIsMalformed(t *testing.T) {
	server := chatServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`, nil)
	defer server.Close()

	oracle, _ := New(Options{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	_, err := oracle.Classify(context.Background(), "text", "a.pdf", nil)
	if !domain.IsKind(err, domain.ErrMalformedVerdict) {
		t.Fatalf("expected malformed verdict, got %v", err)
	}
}
