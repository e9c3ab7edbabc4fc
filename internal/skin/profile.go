package skin

// NoFaceNotes is the notes text stored when no face is visible in the photo.
const NoFaceNotes = "No facial skin detected in this image. Please upload a clear photo of your face for skin analysis."

// Profile is the structured, sanitized result of a photo analysis.
type Profile struct {
	FaceDetected bool                 `json:"face_detected"`
	SkinType     SkinType             `json:"skin_type"`
	Concerns     []Concern            `json:"concerns"`
	Severity     map[Concern]Severity `json:"severity"`
	Notes        string               `json:"notes"`
}

// NoFaceProfile returns the canonical profile for photos without a face.
func NoFaceProfile() Profile {
	return Profile{
		FaceDetected: false,
		SkinType:     SkinTypeUnknown,
		Concerns:     []Concern{},
		Severity:     map[Concern]Severity{},
		Notes:        NoFaceNotes,
	}
}

// HasConcern reports whether c is present in the profile.
func (p Profile) HasConcern(c Concern) bool {
	for _, existing := range p.Concerns {
		if existing == c {
			return true
		}
	}
	return false
}

// HasTopTierSeverity reports whether any concern is rated at the top tier.
func (p Profile) HasTopTierSeverity() bool {
	for _, s := range p.Severity {
		if s.TopTier() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	out := p
	if p.Concerns != nil {
		out.Concerns = append([]Concern(nil), p.Concerns...)
	}
	if p.Severity != nil {
		out.Severity = make(map[Concern]Severity, len(p.Severity))
		for k, v := range p.Severity {
			out.Severity[k] = v
		}
	}
	return out
}
