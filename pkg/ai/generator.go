package ai

import "context"

// TextGenerator produces a completion for a system + user prompt pair.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
