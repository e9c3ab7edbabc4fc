package consultations

import (
	"time"

	"skincare-backend/internal/skin"
)

// Status is the lifecycle state of a consultation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// sources lists, per target status, the states it may be entered from.
// analyzing -> analyzing is the re-entry of a scheduled retry.
var sources = map[Status][]Status{
	StatusAnalyzing: {StatusPending, StatusAnalyzing},
	StatusCompleted: {StatusAnalyzing},
	StatusFailed:    {StatusAnalyzing},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range sources[to] {
		if s == from {
			return true
		}
	}
	return false
}

// allowedSources returns the states to may be entered from.
func allowedSources(to Status) []Status {
	return sources[to]
}

// Consultation is one photo submission and its pipeline outcome.
type Consultation struct {
	ID               string                     `json:"id"`
	Status           Status                     `json:"status"`
	PhotoKey         string                     `json:"-"`
	PhotoContentType string                     `json:"-"`
	Message          string                     `json:"message,omitempty"`
	Profile          *skin.Profile              `json:"analysis,omitempty"`
	Recommendation   *skin.RecommendationResult `json:"recommendations,omitempty"`
	ErrorMessage     *string                    `json:"error_message,omitempty"`
	Attempts         int                        `json:"attempts"`
	Failures         map[string]int             `json:"-"`
	StartedAt        *time.Time                 `json:"started_at,omitempty"`
	CompletedAt      *time.Time                 `json:"completed_at,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// Update carries the fields written alongside a status change. Nil result
// fields clear what a previous attempt stored.
type Update struct {
	Profile        *skin.Profile
	Recommendation *skin.RecommendationResult
	ErrorMessage   *string
	Attempts       int
	// Failures replaces the per-class failure counts when non-nil.
	Failures       map[string]int
	At             time.Time
}

func (u Update) timestamp() time.Time {
	if u.At.IsZero() {
		return time.Now().UTC()
	}
	return u.At.UTC()
}

// countFailure returns a copy of counts with class incremented.
func countFailure(counts map[string]int, class string) map[string]int {
	out := copyCounts(counts)
	out[class]++
	return out
}

func copyCounts(counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts)+1)
	for k, v := range counts {
		out[k] = v
	}
	return out
}
