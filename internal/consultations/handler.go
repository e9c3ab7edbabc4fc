package consultations

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"skincare-backend/internal/shared/server/middleware"
	"skincare-backend/internal/shared/server/respond"
	"skincare-backend/internal/skin"
	"skincare-backend/internal/vision"
)

// Handler wires HTTP handlers to the consultations service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches consultation routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/consultations", h.create)
	rg.POST("/consultations/analyze", h.analyze)
	rg.GET("/consultations/:id", h.get)
}

type consultationResponse struct {
	ID              string                     `json:"id"`
	Status          Status                     `json:"status"`
	Message         string                     `json:"message,omitempty"`
	Analysis        *skin.Profile              `json:"analysis"`
	Recommendations *skin.RecommendationResult `json:"recommendations"`
	ErrorMessage    *string                    `json:"error_message"`
	Attempts        int                        `json:"attempts"`
	CreatedAt       string                     `json:"created_at"`
	CompletedAt     *string                    `json:"completed_at,omitempty"`
}

func toResponse(c Consultation) consultationResponse {
	resp := consultationResponse{
		ID:           c.ID,
		Status:       c.Status,
		Message:      c.Message,
		ErrorMessage: c.ErrorMessage,
		Attempts:     c.Attempts,
		CreatedAt:    c.CreatedAt.UTC().Format(time.RFC3339),
	}
	// Partial results of an attempt in flight are not exposed.
	if c.Status == StatusCompleted || c.Status == StatusFailed {
		resp.Analysis = c.Profile
		resp.Recommendations = c.Recommendation
	}
	if c.CompletedAt != nil {
		ts := c.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &ts
	}
	return resp
}

func (h *Handler) create(c *gin.Context) {
	in, ok := readSubmission(c)
	if !ok {
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	cons, err := h.Svc.Create(ctx, in)
	if err != nil {
		writeSubmitError(c, err, "failed to start consultation")
		return
	}
	respond.JSON(c, http.StatusAccepted, gin.H{
		"id":     cons.ID,
		"status": cons.Status,
	})
}

func (h *Handler) analyze(c *gin.Context) {
	in, ok := readSubmission(c)
	if !ok {
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	cons, err := h.Svc.AnalyzeSync(ctx, in)
	if err != nil {
		writeSubmitError(c, err, "failed to analyze photo")
		return
	}
	c.Set("consultationId", cons.ID)
	if cons.Status != StatusCompleted {
		msg := "analysis failed"
		if cons.ErrorMessage != nil {
			msg = *cons.ErrorMessage
		}
		respond.Error(c, http.StatusBadGateway, "analysis_failed", msg, gin.H{
			"consultation_id": cons.ID,
			"status":          cons.Status,
		})
		return
	}
	respond.OK(c, gin.H{
		"consultation_id": cons.ID,
		"status":          cons.Status,
		"analysis":        cons.Profile,
		"recommendations": cons.Recommendation,
	})
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "consultation id is required", nil)
		return
	}

	c.Set("consultationId", id)

	cons, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "consultation not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch consultation", nil)
		}
		return
	}
	respond.OK(c, toResponse(cons))
}

// readSubmission reads the multipart photo and optional message. It writes
// the error response itself and reports false on failure.
func readSubmission(c *gin.Context) (CreateInput, bool) {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "photo is required", []respond.FieldIssue{
			{Field: "photo", Issue: "required"},
		})
		return CreateInput{}, false
	}
	if fileHeader.Size > vision.MaxImageBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "photo exceeds the 10MB limit", []respond.FieldIssue{
			{Field: "photo", Issue: "too_large"},
		})
		return CreateInput{}, false
	}
	f, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "photo could not be read", nil)
		return CreateInput{}, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, vision.MaxImageBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "photo could not be read", nil)
		return CreateInput{}, false
	}
	return CreateInput{
		Photo:       data,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Message:     c.PostForm("message"),
	}, true
}

func writeSubmitError(c *gin.Context, err error, fallback string) {
	var validationErr *vision.ValidationError
	if errors.As(err, &validationErr) {
		respond.Error(c, http.StatusBadRequest, "invalid_image", validationErr.Error(), []respond.FieldIssue{
			{Field: "photo", Issue: validationErr.Reason},
		})
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
}
