package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
)

// SuggestionGenerator produces candidate task statements the worker
// can tick instead of typing. Generation failure yields an empty list,
// never an error for the turn.
type SuggestionGenerator struct {
	llm    llm.Client
	logger zerolog.Logger
}

func NewSuggestionGenerator(client llm.Client) *SuggestionGenerator {
	return &SuggestionGenerator{
		llm:    client,
		logger: log.With().Str("component", "suggestions").Logger(),
	}
}

func (g *SuggestionGenerator) Generate(ctx context.Context, st *State) []Suggestion {
	if g.llm == nil || !g.llm.Configured() {
		return nil
	}

	prompt := fmt.Sprintf(suggestionsPrompt,
		st.JobTitle,
		bulletList(st.MentionedActivities),
		bulletList(st.ShownSuggestionStatements),
	)

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := g.llm.CompleteStructured(ctx, "", prompt, &out); err != nil {
		g.logger.Warn().Err(err).Msg("suggestion generation failed")
		return nil
	}

	suggestions := make([]Suggestion, 0, 5)
	for _, text := range out.Suggestions {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		suggestions = append(suggestions, Suggestion{ID: uuid.NewString(), Text: text})
		if len(suggestions) == 5 {
			break
		}
	}
	return suggestions
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "(nothing yet)"
	}
	return "- " + strings.Join(items, "\n- ")
}
