package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/studio-archive/internal/core/domain"
	"github.com/kirillkom/studio-archive/internal/infrastructure/llm/verdict"
	"github.com/kirillkom/studio-archive/internal/infrastructure/resilience"
)

const chatOperation = "openai.chat"

type Options struct {
	APIKey   string
	BaseURL  string
	Model    string
	Types    []string
	Executor *resilience.Executor
}

// Oracle classifies documents with an OpenAI-compatible chat completion API.
type Oracle struct {
	api      *sdk.Client
	model    string
	types    []string
	executor *resilience.Executor
}

// New fails when no API key is configured.
func New(opts Options) (*Oracle, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, domain.WrapError(domain.ErrOracleUnavailable, "openai oracle", errors.New("api key is empty"))
	}
	cfg := sdk.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	model := opts.Model
	if model == "" {
		model = sdk.GPT4oMini
	}
	return &Oracle{
		api:      sdk.NewClientWithConfig(cfg),
		model:    model,
		types:    opts.Types,
		executor: opts.Executor,
	}, nil
}

func (o *Oracle) Classify(ctx context.Context, text, filename string, metadata map[string]string) (domain.OracleVerdict, error) {
	req := sdk.ChatCompletionRequest{
		Model: o.model,
		Messages: []sdk.ChatCompletionMessage{
			{Role: sdk.ChatMessageRoleUser, Content: verdict.Prompt(text, filename, metadata, o.types)},
		},
		ResponseFormat: &sdk.ChatCompletionResponseFormat{Type: sdk.ChatCompletionResponseFormatTypeJSONObject},
	}

	var content string
	call := func(ctx context.Context) error {
		resp, err := o.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return fmt.Errorf("openai chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return domain.WrapError(domain.ErrMalformedVerdict, "openai chat completion", errors.New("no choices"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	var err error
	if o.executor != nil {
		err = o.executor.Execute(ctx, chatOperation, call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.OracleVerdict{}, wrapTemporaryIfNeeded(err)
	}
	return verdict.Parse(content)
}

// Available is false while the chat circuit is open.
func (o *Oracle) Available() bool {
	return !o.executor.IsOpen(chatOperation)
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	if domain.IsKind(err, domain.ErrMalformedVerdict) {
		return resilience.ErrorClassification{}
	}
	return resilience.ClassifyHTTP(err, statusCode)
}

func statusCode(err error) int {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *sdk.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func wrapTemporaryIfNeeded(err error) error {
	return resilience.WrapTemporary("openai chat completion", err, classifyOpenAIError)
}
