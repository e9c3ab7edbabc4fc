package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// VisionClient abstracts chat providers that accept an image alongside text.
type VisionClient interface {
	Complete(ctx context.Context, req VisionRequest) (string, error)
}

// VisionRequest is a single image + prompt completion call.
type VisionRequest struct {
	Model       string
	Prompts     PromptSet
	Image       []byte
	ContentType string
	MaxTokens   int
	Temperature float64
}

// ImageDataURL encodes the request image as a base64 data URL.
func (r VisionRequest) ImageDataURL() string {
	contentType := strings.TrimSpace(r.ContentType)
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(r.Image)
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// Complete returns ErrNotImplemented.
func (PlaceholderClient) Complete(ctx context.Context, req VisionRequest) (string, error) {
	_ = ctx
	_ = req
	return "", ErrNotImplemented
}
