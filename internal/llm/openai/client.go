package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"skincare-backend/internal/llm"
	"skincare-backend/internal/shared/telemetry"
)

const defaultBaseURL = "https://api.openai.com/v1/"

// Client implements llm.VisionClient using OpenAI Chat Completions.
type Client struct {
	client openai.Client
}

// Options configures the OpenAI client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// MaxRetries is the SDK-level retry count for transient HTTP failures.
	MaxRetries int
}

// NewClient constructs a new OpenAI client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := openai.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(opts.MaxRetries),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	return &Client{client: client}, nil
}

// Complete sends the system prompt, the user prompt and the image as one chat
// completion and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req llm.VisionRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", fmt.Errorf("vision model is required")
	}
	if len(req.Image) == 0 {
		return "", fmt.Errorf("image is required")
	}

	resp, err := c.client.Chat.Completions.New(ctx, buildParams(req))
	if err != nil {
		return "", wrapError(err)
	}
	logUsage(req, resp)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		if refusal := strings.TrimSpace(resp.Choices[0].Message.Refusal); refusal != "" {
			return refusal, nil
		}
		return "", fmt.Errorf("openai response empty content")
	}
	return content, nil
}

func buildParams(req llm.VisionRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(req.Prompts.System),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
							{OfText: &openai.ChatCompletionContentPartTextParam{
								Text: req.Prompts.User,
							}},
							{OfImageURL: &openai.ChatCompletionContentPartImageParam{
								ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
									URL:    req.ImageDataURL(),
									Detail: "auto",
								},
							}},
						},
					},
				},
			},
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return fmt.Errorf("openai request timeout: %w", err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai http status %d: %w", apiErr.StatusCode, err)
	}
	return fmt.Errorf("openai request failed: %w", err)
}

func logUsage(req llm.VisionRequest, resp *openai.ChatCompletion) {
	telemetry.Info("llm.response", map[string]any{
		"model":             req.Model,
		"prompt_set":        req.Prompts.Name,
		"prompt_hash":       req.Prompts.Hash(),
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"total_tokens":      resp.Usage.TotalTokens,
	})
}

var _ llm.VisionClient = (*Client)(nil)
