package recommendations

import (
	"fmt"
	"strings"

	"skincare-backend/internal/skin"
)

const (
	NoFaceRationale  = "No facial skin detected in the uploaded image. Please upload a clear photo of your face to receive personalized skincare product recommendations."
	GenericRationale = "These products are selected based on general skin health principles and quality ingredients."

	rationalePrefix = "Based on your skin analysis, we've chosen products with "
	rationaleSuffix = ". Start slowly with new products and always patch test first."
	severeFragment  = "gentle formulations recommended due to severity of concerns"
)

// concernFragments is ordered; fragments appear in this order regardless of
// the order the model listed concerns in.
var concernFragments = []struct {
	concern  skin.Concern
	fragment string
}{
	{skin.ConcernAcne, "non-comedogenic formulas to prevent clogged pores"},
	{skin.ConcernSensitivity, "fragrance-free and gentle ingredients to minimize irritation"},
	{skin.ConcernRedness, "soothing ingredients like niacinamide to calm inflammation"},
	{skin.ConcernHyperpigmentation, "brightening actives to help even skin tone"},
	{skin.ConcernOiliness, "oil-controlling ingredients to manage shine"},
	{skin.ConcernDryness, "hydrating ingredients to restore moisture"},
}

// Rationale explains a recommendation for a face-detected profile.
func Rationale(p skin.Profile) string {
	if len(p.Concerns) == 0 {
		return GenericRationale
	}
	parts := make([]string, 0, len(concernFragments)+2)
	if p.SkinType != skin.SkinTypeUnknown && p.SkinType != "" {
		parts = append(parts, fmt.Sprintf("formulas suitable for %s skin", p.SkinType))
	}
	for _, cf := range concernFragments {
		if p.HasConcern(cf.concern) {
			parts = append(parts, cf.fragment)
		}
	}
	if p.HasTopTierSeverity() {
		parts = append(parts, severeFragment)
	}
	return rationalePrefix + strings.Join(parts, ", ") + rationaleSuffix
}
