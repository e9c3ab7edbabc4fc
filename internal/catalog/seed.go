package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"skincare-backend/internal/skin"
)

//go:embed seed/products.json
var seedProducts []byte

// productRecord is the validated wire shape of a catalog product.
type productRecord struct {
	Name              string   `json:"name" validate:"required"`
	Brand             string   `json:"brand" validate:"required"`
	Category          string   `json:"category" validate:"required,oneof=cleanser serum moisturizer sunscreen spot_treatment"`
	Price             float64  `json:"price" validate:"gt=0"`
	Currency          string   `json:"currency" validate:"required,len=3"`
	ComedogenicRating *int     `json:"comedogenic_rating" validate:"omitempty,min=0,max=5"`
	Ingredients       []string `json:"key_ingredients" validate:"dive,required"`
	Concerns          []string `json:"skin_concerns" validate:"dive,oneof=acne redness dryness oiliness hyperpigmentation sensitivity"`
	ProductURL        string   `json:"product_url" validate:"omitempty,url"`
	ImageURL          string   `json:"image_url" validate:"omitempty,url"`
}

var validate = validator.New()

// ParseProducts decodes and validates a JSON array of products.
func ParseProducts(data []byte) ([]skin.CatalogEntry, error) {
	var records []productRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	out := make([]skin.CatalogEntry, 0, len(records))
	for i, r := range records {
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("product %d (%s): %w", i, r.Name, err)
		}
		tags := make([]skin.Concern, 0, len(r.Concerns))
		for _, c := range r.Concerns {
			tags = append(tags, skin.Concern(c))
		}
		out = append(out, skin.CatalogEntry{
			Name:              strings.TrimSpace(r.Name),
			Brand:             strings.TrimSpace(r.Brand),
			Category:          skin.Category(r.Category),
			Price:             r.Price,
			Currency:          r.Currency,
			ComedogenicRating: r.ComedogenicRating,
			Ingredients:       r.Ingredients,
			ConcernTags:       tags,
			ProductURL:        r.ProductURL,
			ImageURL:          r.ImageURL,
		})
	}
	return out, nil
}

// SeedEntries returns the bundled product catalog.
func SeedEntries() ([]skin.CatalogEntry, error) {
	return ParseProducts(seedProducts)
}

// Seed replaces the Postgres catalog with the bundled products.
func Seed(ctx context.Context, store *PGStore) (int, error) {
	entries, err := SeedEntries()
	if err != nil {
		return 0, err
	}
	if err := store.Replace(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}
