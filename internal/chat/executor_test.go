package chat

import (
	"context"
	"testing"
)

func TestExecutor_ShowSuggestionsRecordsState(t *testing.T) {
	client := &fakeLLM{
		configured: true,
		structured: jsonInto(`{"suggestions":["Order stock for the kitchen","Plan weekly menus","  "]}`),
	}
	e := NewExecutor(NewSuggestionGenerator(client))

	st := NewState("Chef")
	res := e.Execute(context.Background(), st, Decision{Action: ActionShowSuggestions})

	if len(res.Suggestions) != 2 {
		t.Fatalf("suggestions = %d, want 2 with blank dropped", len(res.Suggestions))
	}
	for _, s := range res.Suggestions {
		if s.ID == "" {
			t.Error("suggestion missing id")
		}
	}
	if st.SuggestionsShown != 1 {
		t.Errorf("suggestionsShown = %d, want 1", st.SuggestionsShown)
	}
	if len(st.OfferedSuggestions) != 2 || len(st.PendingSuggestions) != 2 {
		t.Errorf("offered=%d pending=%d, want 2 each", len(st.OfferedSuggestions), len(st.PendingSuggestions))
	}
	if len(st.ShownSuggestionStatements) != 2 {
		t.Errorf("shown statements = %d, want 2", len(st.ShownSuggestionStatements))
	}
}

func TestExecutor_SuggestionsCappedAtFive(t *testing.T) {
	client := &fakeLLM{
		configured: true,
		structured: jsonInto(`{"suggestions":["a1 a1 a1 a1","b2 b2 b2 b2","c3 c3 c3 c3","d4 d4 d4 d4","e5 e5 e5 e5","f6 f6 f6 f6","g7 g7 g7 g7"]}`),
	}
	e := NewExecutor(NewSuggestionGenerator(client))

	res := e.Execute(context.Background(), NewState("Chef"), Decision{Action: ActionShowSuggestions})
	if len(res.Suggestions) != 5 {
		t.Fatalf("suggestions = %d, want cap of 5", len(res.Suggestions))
	}
}

func TestExecutor_ShowSuggestionsCountsFailedRounds(t *testing.T) {
	e := NewExecutor(NewSuggestionGenerator(nil))

	st := NewState("Chef")
	res := e.Execute(context.Background(), st, Decision{Action: ActionShowSuggestions})

	if len(res.Suggestions) != 0 {
		t.Errorf("suggestions = %v, want none without a model", res.Suggestions)
	}
	if st.SuggestionsShown != 1 {
		t.Errorf("suggestionsShown = %d, failed rounds still count toward the cap", st.SuggestionsShown)
	}
	if len(st.PendingSuggestions) != 0 {
		t.Error("no pending suggestions should be recorded on failure")
	}
}

func TestExecutor_FinishRaisesFlag(t *testing.T) {
	e := NewExecutor(NewSuggestionGenerator(nil))
	res := e.Execute(context.Background(), NewState("Chef"), Decision{Action: ActionFinish})
	if !res.ShouldFinish {
		t.Fatal("finish action should set ShouldFinish")
	}
}

func TestExecutor_OtherActionsAreNoops(t *testing.T) {
	e := NewExecutor(NewSuggestionGenerator(nil))
	st := NewState("Chef")
	res := e.Execute(context.Background(), st, Decision{Action: ActionEncourageMore})
	if res.ShouldFinish || len(res.Suggestions) != 0 || st.SuggestionsShown != 0 {
		t.Fatal("encourage-more should have no side effects")
	}
}
