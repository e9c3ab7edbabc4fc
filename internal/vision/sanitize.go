package vision

import (
	"strings"

	"skincare-backend/internal/skin"
)

const (
	// MaxNoteWords caps the notes length after sanitization.
	MaxNoteWords = 60

	// SafeNotes replaces notes that use medical language.
	SafeNotes = "Cosmetic skin characteristics observed. Consider professional skincare consultation for personalized advice."

	// CautionClause is appended when a concern is rated at the top severity.
	CautionClause = "Consider professional skincare advice for severe characteristics."

	truncationMarker = "..."
)

var medicalTerms = []string{
	"diagnose", "diagnosis", "disease", "disorder", "syndrome", "condition",
	"pathology", "pathological", "medical", "treatment", "therapy", "cure",
	"prescription", "medication", "drug", "dermatologist",
	"cancer", "biopsy", "tumor", "infection",
}

// Sanitize applies the safety policy to a validated profile. It is pure and
// idempotent: Sanitize(Sanitize(p)) equals Sanitize(p).
func Sanitize(p skin.Profile) skin.Profile {
	if !p.FaceDetected {
		return skin.NoFaceProfile()
	}

	out := skin.Profile{
		FaceDetected: true,
		SkinType:     p.SkinType,
		Concerns:     dedupeConcerns(p.Concerns),
		Notes:        p.Notes,
	}
	out.Severity = make(map[skin.Concern]skin.Severity, len(p.Severity))
	for c, s := range p.Severity {
		if out.HasConcern(c) {
			out.Severity[c] = s
		}
	}

	if containsMedicalTerm(out.Notes) {
		out.Notes = SafeNotes
	}
	out.Notes = truncateWords(out.Notes, MaxNoteWords)
	if out.HasTopTierSeverity() && !mentionsProfessionalCare(out.Notes) {
		// The clause must survive the word cap, so the body gives way.
		budget := MaxNoteWords - len(strings.Fields(CautionClause))
		body := truncateWords(out.Notes, budget)
		out.Notes = strings.TrimSpace(strings.TrimSpace(body) + " " + CautionClause)
	}
	return out
}

func dedupeConcerns(in []skin.Concern) []skin.Concern {
	out := make([]skin.Concern, 0, len(in))
	seen := make(map[skin.Concern]struct{}, len(in))
	for _, c := range in {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func containsMedicalTerm(notes string) bool {
	lower := strings.ToLower(notes)
	for _, term := range medicalTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func mentionsProfessionalCare(notes string) bool {
	lower := strings.ToLower(notes)
	return strings.Contains(lower, "skincare") || strings.Contains(lower, "professional")
}

// truncateWords keeps at most n words, marking the cut with "...".
// Text already within the limit is returned unchanged.
func truncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	if n <= 0 {
		return ""
	}
	return strings.Join(words[:n], " ") + truncationMarker
}
