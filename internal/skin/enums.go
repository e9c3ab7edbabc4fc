package skin

import (
	"fmt"
	"strings"
)

// SkinType is the overall skin classification reported by the vision model.
type SkinType string

const (
	SkinTypeDry         SkinType = "dry"
	SkinTypeOily        SkinType = "oily"
	SkinTypeCombination SkinType = "combination"
	SkinTypeNormal      SkinType = "normal"
	SkinTypeUnknown     SkinType = "unknown"
)

// Valid reports whether t is one of the known skin types.
func (t SkinType) Valid() bool {
	switch t {
	case SkinTypeDry, SkinTypeOily, SkinTypeCombination, SkinTypeNormal, SkinTypeUnknown:
		return true
	}
	return false
}

// ParseSkinType parses a wire value.
func ParseSkinType(raw string) (SkinType, error) {
	t := SkinType(strings.TrimSpace(raw))
	if !t.Valid() {
		return "", fmt.Errorf("unknown skin type %q", raw)
	}
	return t, nil
}

func (t *SkinType) UnmarshalText(b []byte) error {
	parsed, err := ParseSkinType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Concern is a visible skin issue.
type Concern string

const (
	ConcernAcne              Concern = "acne"
	ConcernRedness           Concern = "redness"
	ConcernDryness           Concern = "dryness"
	ConcernOiliness          Concern = "oiliness"
	ConcernHyperpigmentation Concern = "hyperpigmentation"
	ConcernSensitivity       Concern = "sensitivity"
)

// Concerns lists every concern in canonical order.
var Concerns = []Concern{
	ConcernAcne,
	ConcernRedness,
	ConcernDryness,
	ConcernOiliness,
	ConcernHyperpigmentation,
	ConcernSensitivity,
}

func (c Concern) Valid() bool {
	switch c {
	case ConcernAcne, ConcernRedness, ConcernDryness, ConcernOiliness, ConcernHyperpigmentation, ConcernSensitivity:
		return true
	}
	return false
}

// ParseConcern parses a wire value.
func ParseConcern(raw string) (Concern, error) {
	c := Concern(strings.TrimSpace(raw))
	if !c.Valid() {
		return "", fmt.Errorf("unknown concern %q", raw)
	}
	return c, nil
}

func (c *Concern) UnmarshalText(b []byte) error {
	parsed, err := ParseConcern(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Severity is an ordinal intensity attached to a present concern.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// severityNoticeable is the label older prompts asked the model for.
// It is read as SeveritySevere and never written.
const severityNoticeable = "noticeable"

func (s Severity) Valid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

// Rank orders severities; zero for invalid values.
func (s Severity) Rank() int {
	switch s {
	case SeverityMild:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	}
	return 0
}

// TopTier reports whether s is the most severe level.
func (s Severity) TopTier() bool {
	return s == SeveritySevere
}

// ParseSeverity parses a wire value. "noticeable" is accepted as severe.
func ParseSeverity(raw string) (Severity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == severityNoticeable {
		return SeveritySevere, nil
	}
	s := Severity(trimmed)
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity %q", raw)
	}
	return s, nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	parsed, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Category is a product slot in a skincare routine.
type Category string

const (
	CategoryCleanser      Category = "cleanser"
	CategorySerum         Category = "serum"
	CategoryMoisturizer   Category = "moisturizer"
	CategorySunscreen     Category = "sunscreen"
	CategorySpotTreatment Category = "spot_treatment"
)

// Categories is the fixed category set in recommendation order.
var Categories = []Category{
	CategoryCleanser,
	CategorySerum,
	CategoryMoisturizer,
	CategorySunscreen,
	CategorySpotTreatment,
}

func (c Category) Valid() bool {
	switch c {
	case CategoryCleanser, CategorySerum, CategoryMoisturizer, CategorySunscreen, CategorySpotTreatment:
		return true
	}
	return false
}

// ParseCategory parses a wire value.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.TrimSpace(raw))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", raw)
	}
	return c, nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
