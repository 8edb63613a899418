// Package judge wraps the remote judge model behind a single Complete
// operation. The judge endpoint speaks the OpenAI chat-completions protocol,
// typically through a provider gateway, so credentials and base URL are
// process-wide configuration and the client is safe for concurrent use.
package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/backlogjudge/backlogjudge/internal/models"
)

// Params bounds one judge call.
type Params struct {
	Temperature float64
	MaxTokens   int64
}

// Completion is the raw judge reply plus token accounting.
type Completion struct {
	Text  string
	Usage models.Usage
}

// Client is the one operation the evaluation pipeline needs from a judge
// model. Failures are always classified as TransientError or PermanentError.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, params Params) (Completion, error)
	Model() string
}

// ClientConfig configures the OpenAI-compatible judge client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// CallTimeout bounds each individual completion call; zero disables the
	// per-call bound and leaves only the caller's context deadline.
	CallTimeout TimeoutSetting
}

// TimeoutSetting is a per-call timeout in the judge client.
type TimeoutSetting = func(ctx context.Context) (context.Context, context.CancelFunc)

// CallTimeout returns a TimeoutSetting bounding each call to d. A
// non-positive d disables the per-call bound.
func CallTimeout(d time.Duration) TimeoutSetting {
	if d <= 0 {
		return nil
	}
	return func(ctx context.Context) (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, d)
	}
}

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	client      openai.Client
	model       string
	callTimeout TimeoutSetting
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient constructs the production judge client.
func NewOpenAIClient(cfg ClientConfig) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, errors.New("judge model is required")
	}

	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		callTimeout: cfg.CallTimeout,
	}, nil
}

// Model returns the configured judge model identifier.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete implements [Client].
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string, params Params) (Completion, error) {
	if c.callTimeout != nil {
		var cancel context.CancelFunc
		ctx, cancel = c.callTimeout(ctx)
		defer cancel()
	}

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}
	if params.Temperature > 0 {
		req.Temperature = openai.Float(params.Temperature)
	}
	if params.MaxTokens > 0 {
		req.MaxCompletionTokens = openai.Int(params.MaxTokens)
	}

	completion, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		classified := classify(err, statusCodeOf(err))
		slog.DebugContext(ctx, "judge call failed",
			"model", c.model,
			"transient", IsTransient(classified),
			"error", err)
		return Completion{}, classified
	}

	if len(completion.Choices) == 0 {
		return Completion{}, Transientf("judge returned no choices")
	}

	return Completion{
		Text: completion.Choices[0].Message.Content,
		Usage: models.Usage{
			TokensIn:  completion.Usage.PromptTokens,
			TokensOut: completion.Usage.CompletionTokens,
		},
	}, nil
}

// statusCodeOf extracts the HTTP status from an openai API error, or 0 when
// the failure never reached the server.
func statusCodeOf(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ErrMissingCredentials is returned by Validate when no API key is set.
var ErrMissingCredentials = errors.New("judge API key is not configured")

// Validate performs a cheap configuration sanity check without a network
// round trip.
func (cfg ClientConfig) Validate() error {
	if cfg.Model == "" {
		return errors.New("judge model is required")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("%w (set BACKLOGJUDGE_API_KEY)", ErrMissingCredentials)
	}
	return nil
}
