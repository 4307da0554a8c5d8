package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storyconnect/pkg/ai"
	"storyconnect/pkg/authz"
	"storyconnect/pkg/domain"
)

// Assist runs the writing assistant for a writer. Upstream throttling
// and quota exhaustion are surfaced as ErrRateLimited so the handler
// can answer with a retryable status.
func (a *App) Assist(ctx context.Context, caller authz.Identity, mode ai.Mode, prompt string) (string, error) {
	if !caller.HasRole(domain.RoleWriter) {
		return "", ErrForbidden
	}
	if a.assistant == nil {
		return "", fmt.Errorf("%w: assistant not configured", ErrInvalidInput)
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt required", ErrInvalidInput)
	}
	reply, err := a.assistant.Respond(ctx, mode, prompt)
	if err != nil {
		switch {
		case errors.Is(err, ai.ErrRateLimited), errors.Is(err, ai.ErrQuotaExhausted):
			return "", ErrRateLimited
		case errors.Is(err, ai.ErrUnknownMode):
			return "", fmt.Errorf("%w: unknown assistant mode", ErrInvalidInput)
		default:
			return "", fmt.Errorf("assistant: %w", err)
		}
	}
	return reply, nil
}
