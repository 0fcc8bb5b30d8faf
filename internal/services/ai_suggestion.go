package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/complainator-backend/internal/logger"
	"github.com/yungbote/complainator-backend/internal/types"
)

var (
	// ErrEmptyContent means the provider answered but the first choice carried
	// no usable text.
	ErrEmptyContent = errors.New("empty response content from OpenRouter API")
	// ErrNoSuggestionsFound means the content had no lines matching the
	// bullet-only output contract.
	ErrNoSuggestionsFound = errors.New("no suggestions found in the response")
)

// The model is told to emit nothing but "* " bullets so extractSuggestions can
// stay a dumb line filter.
const suggestionSystemPrompt = `ROLE: You are a highly efficient agile expert that provides ONLY actionable suggestions.

TASK: Generate 3-5 specific suggestions based on sprint retrospective notes.

STRICT OUTPUT RULES:
1. Start IMMEDIATELY with suggestions
2. Use ONLY bullet points starting with '* '
3. Each suggestion MUST be a single, concrete action
4. NEVER explain your reasoning
5. NEVER add any context or metadata
6. NEVER include anything except the bullet points

CORRECT FORMAT:
* First concrete action
* Second concrete action
* Third concrete action

INCORRECT FORMAT (DO NOT USE):
Here are my suggestions...
1. First suggestion
- Second suggestion
* Third suggestion with explanation because...
Let me explain why...

REMEMBER: Output ONLY the bullet points. Nothing else.`

type AISuggestionService interface {
	// Generate turns a retrospective's notes into a list of suggestion texts.
	// Any gateway or extraction failure propagates; there is no partial result.
	Generate(ctx context.Context, notes []*types.Note) ([]string, error)
}

type aiSuggestionService struct {
	log     *logger.Logger
	gateway OpenRouterClient
}

func NewAISuggestionService(log *logger.Logger, gateway OpenRouterClient) AISuggestionService {
	serviceLog := log.With("service", "AISuggestionService")
	return &aiSuggestionService{log: serviceLog, gateway: gateway}
}

func (s *aiSuggestionService) Generate(ctx context.Context, notes []*types.Note) ([]string, error) {
	s.log.Info("Generating AI suggestions", "notes", len(notes))

	messages := []ChatMessage{
		{Role: "system", Content: suggestionSystemPrompt},
		{Role: "user", Content: formatNotesPrompt(notes)},
	}

	temperature := 0.7
	maxTokens := 2000
	resp, err := s.gateway.SendChat(ctx, messages, "", &ChatParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		s.log.Error("OpenRouter call failed while generating suggestions", "error", err)
		return nil, fmt.Errorf("failed to generate suggestions: %w", err)
	}

	suggestions, err := extractSuggestions(resp)
	if err != nil {
		s.log.Error("Failed to extract suggestions from response", "error", err)
		return nil, fmt.Errorf("failed to extract suggestions: %w", err)
	}

	s.log.Info("Successfully extracted AI suggestions", "count", len(suggestions))
	return suggestions, nil
}

// formatNotesPrompt renders the notes grouped by category, in a fixed section
// order so the same notes always produce the same prompt. Empty categories get
// an explicit placeholder instead of being dropped.
func formatNotesPrompt(notes []*types.Note) string {
	byCategory := map[types.NoteCategory][]string{}
	for _, note := range notes {
		if note == nil {
			continue
		}
		byCategory[note.Category] = append(byCategory[note.Category], note.Content)
	}

	var b strings.Builder
	b.WriteString("Based on these retrospective notes, provide 3-5 actionable suggestions:\n\n")
	b.WriteString("What needs improvement:\n")
	b.WriteString(formatCategory(byCategory[types.NoteCategoryImprovementArea]))
	b.WriteString("\n\nObservations:\n")
	b.WriteString(formatCategory(byCategory[types.NoteCategoryObservation]))
	b.WriteString("\n\nWhat went well:\n")
	b.WriteString(formatCategory(byCategory[types.NoteCategorySuccess]))
	return b.String()
}

func formatCategory(entries []string) string {
	if len(entries) == 0 {
		return "- No notes in this category"
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, "- "+entry)
	}
	return strings.Join(lines, "\n")
}

// extractSuggestions pulls the bullet lines out of the first choice's content.
// Lines that do not start with '*' after trimming are discarded; marker and
// surrounding whitespace are stripped; order is preserved. Accepts any count
// >= 1 even though the prompt asks for 3-5.
func extractSuggestions(resp *ChatCompletionResponse) ([]string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrEmptyContent
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	var suggestions []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "*") {
			continue
		}
		text := strings.TrimSpace(strings.TrimLeft(trimmed, "* "))
		if text == "" {
			continue
		}
		suggestions = append(suggestions, text)
	}

	if len(suggestions) == 0 {
		return nil, ErrNoSuggestionsFound
	}
	return suggestions, nil
}
