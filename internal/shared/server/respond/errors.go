package respond

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"skincare-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// FieldIssue describes one invalid request field.
type FieldIssue struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if id := c.GetString("consultationId"); id != "" {
		fields["consultation_id"] = id
	}
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// ValidationIssues converts binding errors into field issues. Non-validator
// errors yield a single issue without a field.
func ValidationIssues(err error) []FieldIssue {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return []FieldIssue{{Issue: err.Error()}}
	}
	out := make([]FieldIssue, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		out = append(out, FieldIssue{Field: fieldErr.Field(), Issue: issueFor(fieldErr)})
	}
	return out
}

func issueFor(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of " + fieldErr.Param()
	case "min":
		return "must be at least " + fieldErr.Param()
	case "max":
		return "must be at most " + fieldErr.Param()
	default:
		return "invalid"
	}
}
