package recommendations

import "skincare-backend/internal/skin"

// Mode decides what a stage does when it filters the pool down to nothing.
type Mode int

const (
	// Hard stages always apply, even if the pool becomes empty.
	Hard Mode = iota
	// Soft stages revert to the prior pool when they would empty it.
	Soft
)

func (m Mode) String() string {
	if m == Hard {
		return "hard"
	}
	return "soft"
}

// Stage is one predicate in the per-category filter cascade.
type Stage struct {
	Name    string
	Mode    Mode
	Applies func(p skin.Profile, category skin.Category) bool
	Keep    func(p skin.Profile, e skin.CatalogEntry) bool
}

// run applies the stage to pool and returns the next pool.
func (s Stage) run(p skin.Profile, category skin.Category, pool []skin.CatalogEntry) []skin.CatalogEntry {
	if s.Applies != nil && !s.Applies(p, category) {
		return pool
	}
	narrowed := make([]skin.CatalogEntry, 0, len(pool))
	for _, e := range pool {
		if s.Keep(p, e) {
			narrowed = append(narrowed, e)
		}
	}
	if len(narrowed) == 0 && s.Mode == Soft {
		return pool
	}
	return narrowed
}

// MaxComedogenicForAcne is the highest comedogenic rating kept when acne is present.
const MaxComedogenicForAcne = 2

// DefaultStages is the filter cascade in application order.
func DefaultStages() []Stage {
	return []Stage{
		{
			Name:    "concern_overlap",
			Mode:    Soft,
			Applies: func(p skin.Profile, _ skin.Category) bool { return len(p.Concerns) > 0 },
			Keep: func(p skin.Profile, e skin.CatalogEntry) bool {
				for _, c := range p.Concerns {
					if e.TaggedWith(c) {
						return true
					}
				}
				return false
			},
		},
		{
			Name:    "acne_low_comedogenic",
			Mode:    Hard,
			Applies: concernPresent(skin.ConcernAcne),
			Keep: func(_ skin.Profile, e skin.CatalogEntry) bool {
				return e.ComedogenicRating == nil || *e.ComedogenicRating <= MaxComedogenicForAcne
			},
		},
		{
			Name:    "sensitivity_fragrance_free",
			Mode:    Hard,
			Applies: concernPresent(skin.ConcernSensitivity),
			Keep: func(_ skin.Profile, e skin.CatalogEntry) bool {
				return !e.HasIngredient("fragrance")
			},
		},
		affinity("redness_soothing", skin.ConcernRedness, "niacinamide", "aloe", "chamomile", "centella"),
		affinity("hyperpigmentation_brightening", skin.ConcernHyperpigmentation, "vitamin c", "retinol", "alpha arbutin", "kojic acid"),
		affinity("oiliness_oil_control", skin.ConcernOiliness, "salicylic acid", "niacinamide", "zinc"),
		affinity("dryness_hydrating", skin.ConcernDryness, "hyaluronic acid", "ceramides", "glycerin", "squalane"),
		{
			Name:    "oily_moisturizer_texture",
			Mode:    Soft,
			Applies: moisturizerFor(skin.SkinTypeOily),
			Keep: func(_ skin.Profile, e skin.CatalogEntry) bool {
				return e.NameContains("gel") || e.NameContains("oil-free") || e.HasIngredient("dimethicone")
			},
		},
		{
			Name:    "dry_moisturizer_texture",
			Mode:    Soft,
			Applies: moisturizerFor(skin.SkinTypeDry),
			Keep: func(_ skin.Profile, e skin.CatalogEntry) bool {
				return e.NameContains("cream") || e.NameContains("rich") ||
					e.HasIngredient("ceramides") || e.HasIngredient("shea butter")
			},
		},
	}
}

func concernPresent(c skin.Concern) func(skin.Profile, skin.Category) bool {
	return func(p skin.Profile, _ skin.Category) bool { return p.HasConcern(c) }
}

func moisturizerFor(t skin.SkinType) func(skin.Profile, skin.Category) bool {
	return func(p skin.Profile, category skin.Category) bool {
		return category == skin.CategoryMoisturizer && p.SkinType == t
	}
}

func affinity(name string, c skin.Concern, ingredients ...string) Stage {
	return Stage{
		Name:    name,
		Mode:    Soft,
		Applies: concernPresent(c),
		Keep: func(_ skin.Profile, e skin.CatalogEntry) bool {
			for _, ing := range ingredients {
				if e.HasIngredient(ing) {
					return true
				}
			}
			return false
		},
	}
}
