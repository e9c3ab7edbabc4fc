package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"skincare-backend/internal/shared/server/respond"
	"skincare-backend/internal/skin"
)

// Handler serves the product listing.
type Handler struct {
	Store Store
}

// NewHandler constructs a Handler.
func NewHandler(store Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches catalog routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/products", h.listProducts)
}

type listQuery struct {
	Category string `form:"category" binding:"omitempty,oneof=cleanser serum moisturizer sunscreen spot_treatment"`
	Concern  string `form:"concern" binding:"omitempty,max=64"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

func (h *Handler) listProducts(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid product query", respond.ValidationIssues(err))
		return
	}

	entries, err := h.Store.Search(c.Request.Context(), Filter{
		Category: skin.Category(q.Category),
		Concern:  q.Concern,
		Limit:    q.Limit,
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list products", nil)
		return
	}
	if entries == nil {
		entries = []skin.CatalogEntry{}
	}
	respond.OK(c, gin.H{"products": entries})
}
