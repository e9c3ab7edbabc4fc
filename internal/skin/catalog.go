package skin

import "strings"

// CatalogEntry is a read-only product record used for recommendations.
type CatalogEntry struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Brand             string    `json:"brand"`
	Category          Category  `json:"category"`
	Price             float64   `json:"price"`
	Currency          string    `json:"currency"`
	ComedogenicRating *int      `json:"comedogenic_rating"`
	Ingredients       []string  `json:"key_ingredients"`
	ConcernTags       []Concern `json:"skin_concerns"`
	ProductURL        string    `json:"product_url"`
	ImageURL          string    `json:"image_url"`
}

// HasIngredient reports whether any ingredient contains needle, ignoring case.
func (e CatalogEntry) HasIngredient(needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return false
	}
	for _, ing := range e.Ingredients {
		if strings.Contains(strings.ToLower(ing), needle) {
			return true
		}
	}
	return false
}

// NameContains reports whether the product name contains needle, ignoring case.
func (e CatalogEntry) NameContains(needle string) bool {
	return strings.Contains(strings.ToLower(e.Name), strings.ToLower(needle))
}

// TaggedWith reports whether the entry addresses c.
func (e CatalogEntry) TaggedWith(c Concern) bool {
	for _, tag := range e.ConcernTags {
		if tag == c {
			return true
		}
	}
	return false
}

// ProductPick is the projection of a CatalogEntry returned to clients.
type ProductPick struct {
	Name  string   `json:"name"`
	Brand string   `json:"brand"`
	Price float64  `json:"price"`
	URL   string   `json:"url"`
	Image string   `json:"image"`
	Tags  []string `json:"tags"`
}

// Pick projects e into a ProductPick.
func (e CatalogEntry) Pick() ProductPick {
	tags := make([]string, 0, len(e.ConcernTags))
	for _, c := range e.ConcernTags {
		tags = append(tags, string(c))
	}
	return ProductPick{
		Name:  e.Name,
		Brand: e.Brand,
		Price: e.Price,
		URL:   e.ProductURL,
		Image: e.ImageURL,
		Tags:  tags,
	}
}

// RecommendationResult is the per-category selection plus a rationale.
type RecommendationResult struct {
	Picks     map[Category][]ProductPick `json:"picks"`
	Rationale string                     `json:"rationale"`
}
