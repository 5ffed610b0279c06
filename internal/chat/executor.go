package chat

import "context"

// ExecResult reports an action's side effects.
type ExecResult struct {
	Suggestions  []Suggestion
	ShouldFinish bool
}

// Executor performs the side effect a decision requires. Only
// show-suggestions does real work; finish raises the termination flag.
type Executor struct {
	generator *SuggestionGenerator
}

func NewExecutor(generator *SuggestionGenerator) *Executor {
	return &Executor{generator: generator}
}

func (e *Executor) Execute(ctx context.Context, st *State, d Decision) ExecResult {
	switch d.Action {
	case ActionShowSuggestions:
		suggestions := e.generator.Generate(ctx, st)
		st.SuggestionsShown++
		if len(suggestions) > 0 {
			texts := make([]string, len(suggestions))
			for i, s := range suggestions {
				texts[i] = s.Text
			}
			st.OfferedSuggestions = append(st.OfferedSuggestions, suggestions...)
			st.ShownSuggestionStatements = append(st.ShownSuggestionStatements, texts...)
			st.PendingSuggestions = texts
		}
		return ExecResult{Suggestions: suggestions}
	case ActionFinish:
		return ExecResult{ShouldFinish: true}
	default:
		return ExecResult{}
	}
}
