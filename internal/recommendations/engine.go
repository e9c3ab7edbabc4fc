package recommendations

import (
	"context"
	"fmt"

	"skincare-backend/internal/skin"
)

// MaxPicksPerCategory caps the picks returned for a category.
const MaxPicksPerCategory = 3

// RecommendationError reports a failure to produce recommendations.
type RecommendationError struct {
	Err error
}

func (e *RecommendationError) Error() string {
	return fmt.Sprintf("recommendation generation failed: %v", e.Err)
}

func (e *RecommendationError) Unwrap() error {
	return e.Err
}

// Recommend maps a sanitized profile onto the catalog using DefaultStages.
// entries must be in the catalog's stable order.
func Recommend(p skin.Profile, entries []skin.CatalogEntry) skin.RecommendationResult {
	return recommendWith(DefaultStages(), p, entries)
}

func recommendWith(stages []Stage, p skin.Profile, entries []skin.CatalogEntry) skin.RecommendationResult {
	if !p.FaceDetected {
		return skin.RecommendationResult{Picks: map[skin.Category][]skin.ProductPick{}, Rationale: NoFaceRationale}
	}

	picks := make(map[skin.Category][]skin.ProductPick, len(skin.Categories))
	for _, category := range skin.Categories {
		pool := make([]skin.CatalogEntry, 0, len(entries))
		for _, e := range entries {
			if e.Category == category {
				pool = append(pool, e)
			}
		}
		for _, stage := range stages {
			pool = stage.run(p, category, pool)
		}
		if len(pool) == 0 {
			continue
		}
		if len(pool) > MaxPicksPerCategory {
			pool = pool[:MaxPicksPerCategory]
		}
		out := make([]skin.ProductPick, 0, len(pool))
		for _, e := range pool {
			out = append(out, e.Pick())
		}
		picks[category] = out
	}
	return skin.RecommendationResult{Picks: picks, Rationale: Rationale(p)}
}

// Catalog is the read-only product source.
type Catalog interface {
	Entries(ctx context.Context) ([]skin.CatalogEntry, error)
}

// Engine reads the catalog fresh on every run.
type Engine struct {
	catalog Catalog
	stages  []Stage
}

// NewEngine constructs an Engine over catalog.
func NewEngine(catalog Catalog) *Engine {
	return &Engine{catalog: catalog, stages: DefaultStages()}
}

// Generate loads the catalog and recommends for p.
func (e *Engine) Generate(ctx context.Context, p skin.Profile) (skin.RecommendationResult, error) {
	if !p.FaceDetected {
		return recommendWith(e.stages, p, nil), nil
	}
	if e.catalog == nil {
		return skin.RecommendationResult{}, &RecommendationError{Err: fmt.Errorf("catalog not configured")}
	}
	entries, err := e.catalog.Entries(ctx)
	if err != nil {
		return skin.RecommendationResult{}, &RecommendationError{Err: fmt.Errorf("load catalog: %w", err)}
	}
	return recommendWith(e.stages, p, entries), nil
}
