package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/complainator-backend/internal/types"
)

type fakeGateway struct {
	resp     *ChatCompletionResponse
	err      error
	messages []ChatMessage
	params   *ChatParams
	calls    int
}

func (f *fakeGateway) SendChat(ctx context.Context, messages []ChatMessage, model string, params *ChatParams) (*ChatCompletionResponse, error) {
	f.calls++
	f.messages = messages
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func chatResponse(content string) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		Choices: []ChatChoice{{Message: ChatMessage{Role: "assistant", Content: content}}},
	}
}

func TestExtractSuggestions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr error
	}{
		{
			name:    "clean bullets",
			content: "* Try shorter standups\n* Rotate the facilitator",
			want:    []string{"Try shorter standups", "Rotate the facilitator"},
		},
		{
			name:    "indented and padded bullets",
			content: "* A\n  * B\n\t*   C  ",
			want:    []string{"A", "B", "C"},
		},
		{
			name:    "non-bullet lines discarded",
			content: "Here are my suggestions:\n* Keep the demo\nSome trailing chatter",
			want:    []string{"Keep the demo"},
		},
		{
			name:    "empty content",
			content: "",
			wantErr: ErrEmptyContent,
		},
		{
			name:    "whitespace only content",
			content: "  \n\t\n",
			wantErr: ErrEmptyContent,
		},
		{
			name:    "no bullets at all",
			content: "I think the sprint went fine overall.",
			wantErr: ErrNoSuggestionsFound,
		},
		{
			name:    "bullet marker with no text",
			content: "* \n*",
			wantErr: ErrNoSuggestionsFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractSuggestions(chatResponse(tt.content))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want err=%v got=%v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("want %d suggestions, got %d (%v)", len(tt.want), len(got), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("suggestion %d: want=%q got=%q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestExtractSuggestionsNoChoices(t *testing.T) {
	if _, err := extractSuggestions(&ChatCompletionResponse{}); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("want ErrEmptyContent, got %v", err)
	}
	if _, err := extractSuggestions(nil); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("want ErrEmptyContent for nil response, got %v", err)
	}
}

func TestFormatNotesPromptGroupsByCategory(t *testing.T) {
	notes := []*types.Note{
		{Category: types.NoteCategorySuccess, Content: "Demo went smoothly"},
		{Category: types.NoteCategoryImprovementArea, Content: "Standups run long"},
		{Category: types.NoteCategoryImprovementArea, Content: "Too many meetings"},
	}
	prompt := formatNotesPrompt(notes)

	improvementIdx := strings.Index(prompt, "What needs improvement:")
	observationIdx := strings.Index(prompt, "Observations:")
	successIdx := strings.Index(prompt, "What went well:")
	if improvementIdx < 0 || observationIdx < 0 || successIdx < 0 {
		t.Fatalf("missing category section in prompt:\n%s", prompt)
	}
	if !(improvementIdx < observationIdx && observationIdx < successIdx) {
		t.Fatalf("sections out of order:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- Standups run long\n- Too many meetings") {
		t.Fatalf("improvement notes not listed in insertion order:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- Demo went smoothly") {
		t.Fatalf("success note missing:\n%s", prompt)
	}
}

func TestFormatNotesPromptEmptyCategoriesGetPlaceholder(t *testing.T) {
	prompt := formatNotesPrompt(nil)
	if got := strings.Count(prompt, "- No notes in this category"); got != 3 {
		t.Fatalf("expected 3 placeholders for empty retrospective, got %d:\n%s", got, prompt)
	}
}

func TestGenerateSendsSystemPromptAndOverrides(t *testing.T) {
	gw := &fakeGateway{resp: chatResponse("* Do less, finish more")}
	svc := NewAISuggestionService(newTestLogger(t), gw)

	got, err := svc.Generate(t.Context(), []*types.Note{
		{Category: types.NoteCategoryObservation, Content: "Scope creeps mid-sprint"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "Do less, finish more" {
		t.Fatalf("unexpected suggestions: %v", got)
	}
	if gw.calls != 1 {
		t.Fatalf("expected 1 gateway call, got %d", gw.calls)
	}
	if len(gw.messages) != 2 || gw.messages[0].Role != "system" || gw.messages[1].Role != "user" {
		t.Fatalf("unexpected message roles: %+v", gw.messages)
	}
	if !strings.Contains(gw.messages[0].Content, "ONLY bullet points") {
		t.Fatalf("system prompt missing bullet contract:\n%s", gw.messages[0].Content)
	}
	if !strings.Contains(gw.messages[1].Content, "Scope creeps mid-sprint") {
		t.Fatalf("user prompt missing note content:\n%s", gw.messages[1].Content)
	}
	if gw.params == nil || gw.params.Temperature == nil || *gw.params.Temperature != 0.7 {
		t.Fatalf("expected temperature override 0.7, got %+v", gw.params)
	}
	if gw.params.MaxTokens == nil || *gw.params.MaxTokens != 2000 {
		t.Fatalf("expected max_tokens override 2000, got %+v", gw.params)
	}
}

func TestGeneratePropagatesGatewayFailure(t *testing.T) {
	gw := &fakeGateway{err: &RateLimitError{Message: "rate limit exceeded", RetryAfter: defaultRetryAfter}}
	svc := NewAISuggestionService(newTestLogger(t), gw)

	_, err := svc.Generate(t.Context(), nil)
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected wrapped RateLimitError, got %v", err)
	}
}
