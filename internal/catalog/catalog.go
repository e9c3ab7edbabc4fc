package catalog

import (
	"context"
	"strings"

	"skincare-backend/internal/skin"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Filter narrows a product listing. Concern matches ingredient text or
// concern tags, ignoring case.
type Filter struct {
	Category skin.Category
	Concern  string
	Limit    int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	if f.Limit > MaxLimit {
		return MaxLimit
	}
	return f.Limit
}

// Store is the read-only product catalog.
type Store interface {
	// Entries returns every product in stable id order.
	Entries(ctx context.Context) ([]skin.CatalogEntry, error)
	Search(ctx context.Context, f Filter) ([]skin.CatalogEntry, error)
}

func (f Filter) matches(e skin.CatalogEntry) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	needle := strings.ToLower(strings.TrimSpace(f.Concern))
	if needle == "" {
		return true
	}
	if e.HasIngredient(needle) {
		return true
	}
	for _, tag := range e.ConcernTags {
		if strings.Contains(string(tag), needle) {
			return true
		}
	}
	return false
}
