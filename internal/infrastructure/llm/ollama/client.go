package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/infrastructure/llm/verdict"
	"github.com/kirillkom/studio-archive/internal/infrastructure/resilience"
)

const generateOperation = "ollama.generate"

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New builds an Ollama client. A nil executor disables retries and the
// circuit breaker.
func New(baseURL, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Oracle classifies documents with a local Ollama model.
type Oracle struct {
	client *Client
	types  []string
}

func NewOracle(client *Client, types []string) *Oracle {
	return &Oracle{client: client, types: types}
}

func (o *Oracle) Classify(ctx context.Context, text, filename string, metadata map[string]string) (domain.OracleVerdict, error) {
	respText, err := o.client.generateJSON(ctx, verdict.Prompt(text, filename, metadata, o.types))
	if err != nil {
		return domain.OracleVerdict{}, err
	}
	return verdict.Parse(respText)
}

// Available is false while the generate circuit is open.
func (o *Oracle) Available() bool {
	return !o.client.executor.IsOpen(generateOperation)
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{Model: c.model, Prompt: prompt, Format: "json"}
	var resp generateResponse
	call := func(ctx context.Context) error {
		return c.post(ctx, "/api/generate", "generate", req, &resp)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, generateOperation, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return strings.TrimSpace(resp.Response), nil
}
