package llm

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
)

var (
	//go:embed prompts/primary_system.txt
	primarySystemPrompt string
	//go:embed prompts/primary_user.txt
	primaryUserPrompt string
	//go:embed prompts/fallback_system.txt
	fallbackSystemPrompt string
	//go:embed prompts/fallback_user.txt
	fallbackUserPrompt string
)

// PromptSet is a system/user prompt pair sent with the photo.
type PromptSet struct {
	Name   string
	System string
	User   string
}

// PrimaryPrompts is the strict, detailed prompt pair.
func PrimaryPrompts() PromptSet {
	return PromptSet{Name: "primary", System: primarySystemPrompt, User: primaryUserPrompt}
}

// FallbackPrompts is the shorter, more permissive prompt pair.
func FallbackPrompts() PromptSet {
	return PromptSet{Name: "fallback", System: fallbackSystemPrompt, User: fallbackUserPrompt}
}

// Hash returns a stable identifier of the prompt text, used in logs.
func (p PromptSet) Hash() string {
	sum := sha256.Sum256([]byte("system: " + p.System + "\n\nuser: " + p.User))
	return hex.EncodeToString(sum[:])
}
