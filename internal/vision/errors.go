package vision

import (
	"fmt"
	"strings"
)

// ValidationError reports an image that cannot be analyzed. It is not retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "image validation failed: " + e.Reason
}

// ParseError reports a model response without any JSON object in it.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "response parse failed: " + e.Reason
}

// SchemaError reports a model response whose JSON does not match the profile schema.
type SchemaError struct {
	Fields []string
	Reason string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("response schema invalid")
	if len(e.Fields) > 0 {
		b.WriteString(" fields=")
		b.WriteString(strings.Join(e.Fields, ","))
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// AnalysisError reports that no strategy produced a usable response.
type AnalysisError struct {
	Reason string
	Err    error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
