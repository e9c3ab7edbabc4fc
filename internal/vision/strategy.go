package vision

import (
	"strings"

	"skincare-backend/internal/llm"
)

// Strategy is one (model, prompt set) pair tried by the Analyzer.
type Strategy struct {
	Model   string
	Prompts llm.PromptSet
}

// Name identifies the strategy in logs and metrics.
func (s Strategy) Name() string {
	return s.Prompts.Name + "-" + s.Model
}

// DefaultStrategies orders the strict prompts before the permissive ones,
// trying the cheaper model first within each prompt set.
func DefaultStrategies(primaryModel, fallbackModel string) []Strategy {
	return []Strategy{
		{Model: primaryModel, Prompts: llm.PrimaryPrompts()},
		{Model: fallbackModel, Prompts: llm.PrimaryPrompts()},
		{Model: primaryModel, Prompts: llm.FallbackPrompts()},
		{Model: fallbackModel, Prompts: llm.FallbackPrompts()},
	}
}

// Outcome classifies a single strategy call.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRefused  Outcome = "refused"
	OutcomeFailed   Outcome = "failed"
)

var refusalMarkers = []string{
	"I'm sorry, I can't assist",
	"I cannot",
	"I'm not able",
}

var apostropheReplacer = strings.NewReplacer("’", "'", "‘", "'")

// IsRefusal reports whether the model text contains a refusal marker.
func IsRefusal(text string) bool {
	normalized := apostropheReplacer.Replace(text)
	for _, marker := range refusalMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

func classify(text string, err error) Outcome {
	if err != nil || strings.TrimSpace(text) == "" {
		return OutcomeFailed
	}
	if IsRefusal(text) {
		return OutcomeRefused
	}
	return OutcomeAccepted
}
