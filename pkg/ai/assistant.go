package ai

import (
	"context"
	"errors"
	"strings"
)

// ErrUnknownMode is returned for a mode outside the supported set.
var ErrUnknownMode = errors.New("unknown assistant mode")

// Mode selects the assistant's behavior for a request.
type Mode string

const (
	// ModeGeneral answers free-form craft questions.
	ModeGeneral Mode = "general"
	// ModeContinue extends a draft in the author's voice.
	ModeContinue Mode = "continue"
	// ModeImprove edits a passage and explains the changes.
	ModeImprove Mode = "improve"
	// ModeIdeas brainstorms plot and character directions.
	ModeIdeas Mode = "ideas"
)

// ParseMode maps a request string to a Mode. Empty input means general.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.TrimSpace(raw)) {
	case "", ModeGeneral:
		return ModeGeneral, true
	case ModeContinue:
		return ModeContinue, true
	case ModeImprove:
		return ModeImprove, true
	case ModeIdeas:
		return ModeIdeas, true
	}
	return "", false
}

const generalPrompt = `You are an expert writing assistant for creative authors. You help with:
- Creative writing and storytelling
- Character development and dialogue
- Plot structure and pacing
- Prose improvement and style
- World-building and setting descriptions

Be encouraging, constructive, and match the author's creative vision. Provide detailed, actionable feedback.`

const continuePrompt = `You are a creative writing assistant specializing in story continuation. Your job is to:
- Continue the story naturally from where the author left off
- Match the tone, style, voice, and pacing of the existing text
- Maintain character consistency and plot coherence
- Write 2-3 engaging paragraphs that flow seamlessly from the original
- Avoid introducing major plot changes without setup`

const improvePrompt = `You are an editorial assistant for creative writing. Your job is to:
- Enhance clarity, flow, and reader engagement
- Preserve the author's unique voice and style
- Improve sentence structure and word choice
- Fix any grammar or punctuation issues
- Provide the improved version followed by brief notes explaining key changes`

const ideasPrompt = `You are a creative brainstorming partner for authors. Your job is to:
- Generate 3-5 specific, creative ideas based on the given context
- Suggest plot developments, character arcs, or story directions
- Be imaginative and unexpected while staying coherent with the story
- Provide brief explanations for each idea
- Consider different genres and narrative possibilities`

// Assistant is the writing assistant exposed to authors.
type Assistant struct {
	generator TextGenerator
}

func NewAssistant(generator TextGenerator) *Assistant {
	return &Assistant{generator: generator}
}

// Respond runs one assistant turn.
func (a *Assistant) Respond(ctx context.Context, mode Mode, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt is required")
	}
	system, ok := systemPromptFor(mode)
	if !ok {
		return "", ErrUnknownMode
	}
	return a.generator.GenerateText(ctx, system, prompt)
}

func systemPromptFor(mode Mode) (string, bool) {
	switch mode {
	case ModeGeneral:
		return generalPrompt, true
	case ModeContinue:
		return continuePrompt, true
	case ModeImprove:
		return improvePrompt, true
	case ModeIdeas:
		return ideasPrompt, true
	}
	return "", false
}
