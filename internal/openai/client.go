package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// Client wraps the OpenAI SDK and exposes the classifier and extractors.
type Client struct {
	apiKey    string
	client    *openai.Client
	model     openai.ChatModel
	tokenizer *tokenizer
	schemas   *schemas
}

// ErrClientNotInitialised is returned when attempting to call the API without a configured client.
var ErrClientNotInitialised = errors.New("openai client not initialised")

// ErrEmptyCompletion is returned when the model answers with no choices.
var ErrEmptyCompletion = errors.New("no completion received")

// Option configures a Client.
type Option func(*settings)

type settings struct {
	model   string
	baseURL string
	retries int
}

// WithModel selects the chat model.
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// WithBaseURL points the client at an OpenAI compatible endpoint.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithMaxRetries overrides the SDK retry count.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.retries = n }
}

// New returns a Client. Without an API key the client is inert: Enabled
// reports false and every call returns ErrClientNotInitialised.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{schemas: mustCompileSchemas()}
	if apiKey == "" {
		return c
	}

	st := settings{retries: -1}
	for _, opt := range opts {
		opt(&st)
	}
	model := openai.ChatModel(strings.TrimSpace(st.model))
	if model == "" {
		model = DefaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if st.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(st.baseURL))
	}
	if st.retries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(st.retries))
	}

	client := openai.NewClient(reqOpts...)
	c.apiKey = apiKey
	c.client = &client
	c.model = model
	c.tokenizer = newTokenizerForModel(string(model))
	return c
}

// Enabled reports whether the client can reach the API.
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// complete sends one system + user exchange and returns the raw answer.
func (c *Client) complete(ctx context.Context, system, user string, temperature float64, maxTokens int64, timeout time.Duration) (string, error) {
	if !c.Enabled() {
		return "", ErrClientNotInitialised
	}

	req := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(system),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(user),
					},
				},
			},
		},
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
