package vision

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes is the largest accepted upload.
const MaxImageBytes = 10 << 20

var allowedContentTypes = map[string]string{
	"image/jpeg": "image/jpeg",
	"image/jpg":  "image/jpeg",
	"image/png":  "image/png",
	"image/webp": "image/webp",
}

// ValidateImage checks size and content type and returns the normalized
// content type used when sending the image to the model. The payload is
// always sniffed: a recognized supported format wins over the declared one,
// any other recognized format is rejected, and an undetectable payload keeps
// the declared type (jpeg when none was declared).
func ValidateImage(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", &ValidationError{Reason: "image is empty"}
	}
	if len(data) > MaxImageBytes {
		return "", &ValidationError{Reason: fmt.Sprintf("image too large: %d bytes (max: %d)", len(data), MaxImageBytes)}
	}

	declared := normalizeContentType(contentType)
	if declared == "application/octet-stream" {
		declared = ""
	}
	if declared != "" {
		if _, ok := allowedContentTypes[declared]; !ok {
			return "", &ValidationError{Reason: "unsupported image format: " + declared}
		}
	}

	detected := normalizeContentType(mimetype.Detect(data).String())
	if detected != "" && detected != "application/octet-stream" {
		normalized, ok := allowedContentTypes[detected]
		if !ok {
			if declared != "" {
				return "", &ValidationError{Reason: fmt.Sprintf("image content (%s) does not match declared type %s", detected, declared)}
			}
			return "", &ValidationError{Reason: "unsupported image format: " + detected}
		}
		return normalized, nil
	}
	if declared == "" {
		return "image/jpeg", nil
	}
	return allowedContentTypes[declared], nil
}

func normalizeContentType(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(raw, ";"); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	return raw
}
