package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/session"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/taxonomy"
)

// ChatResponse is the full outcome of one conversation turn.
type ChatResponse struct {
	SessionID             string       `json:"sessionId"`
	Message               string       `json:"message"`
	Suggestions           []Suggestion `json:"suggestions"`
	ShouldShowSuggestions bool         `json:"shouldShowSuggestions"`
	IsComplete            bool         `json:"isComplete"`
	ToolUsed              string       `json:"toolUsed"`
	UpdatedState          *State       `json:"updatedState"`
}

// Orchestrator runs the per-turn loop: analyze, decide, execute,
// compose, persist. One logical writer per session id; callers
// serialize requests per session.
type Orchestrator struct {
	store    *session.Store
	llm      llm.Client
	taxonomy taxonomy.Client
	analyzer *Analyzer
	policy   *Policy
	executor *Executor
	composer *Composer
	logger   zerolog.Logger
}

func NewOrchestrator(client llm.Client, tax taxonomy.Client, store *session.Store) *Orchestrator {
	return &Orchestrator{
		store:    store,
		llm:      client,
		taxonomy: tax,
		analyzer: NewAnalyzer(client),
		policy:   NewPolicy(client, tax),
		executor: NewExecutor(NewSuggestionGenerator(client)),
		composer: NewComposer(client),
		logger:   log.With().Str("component", "chat").Logger(),
	}
}

// StartSession opens a new elicitation session. An initial task dump,
// when present, is analyzed up front and completes the session
// immediately if it already covers the occupation well.
func (o *Orchestrator) StartSession(ctx context.Context, jobTitle string, initialTasks []string) (*ChatResponse, error) {
	sessionID := uuid.NewString()
	st := NewState(jobTitle)

	var d Decision
	if len(initialTasks) > 0 {
		st = o.analyzer.Analyze(ctx, st, strings.Join(initialTasks, "\n"))
		if o.dumpIsComprehensive(ctx, st) {
			d = Decision{Action: ActionFinish}
			st.ActionsTaken = append(st.ActionsTaken, string(d.Action))
		} else {
			d = o.policy.Decide(ctx, st)
		}
	} else {
		d = o.policy.Decide(ctx, st)
	}

	exec := o.executor.Execute(ctx, st, d)
	message := o.composer.Compose(ctx, st, d)
	o.finalize(st, message)

	state, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	if err := o.store.Create(sessionID, jobTitle, state); err != nil {
		return nil, err
	}

	o.logger.Info().Str("session", sessionID).Str("jobTitle", jobTitle).Msg("session started")
	return o.response(sessionID, message, st, d, exec), nil
}

// HandleMessage processes one user turn and returns the reply.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, message string) (*ChatResponse, error) {
	st, err := o.loadState(sessionID)
	if err != nil {
		return nil, err
	}

	st = o.analyzer.Analyze(ctx, st, message)
	d := o.nextDecision(ctx, st)
	exec := o.executor.Execute(ctx, st, d)
	reply := o.composer.Compose(ctx, st, d)
	o.finalize(st, reply)

	if err := o.persist(sessionID, st); err != nil {
		return nil, err
	}
	return o.response(sessionID, reply, st, d, exec), nil
}

// HandleMessageStream is HandleMessage with the reply delivered
// incrementally through emit. State is persisted only after the full
// reply is known.
func (o *Orchestrator) HandleMessageStream(ctx context.Context, sessionID, message string, emit func(content string)) (*ChatResponse, error) {
	st, err := o.loadState(sessionID)
	if err != nil {
		return nil, err
	}

	st = o.analyzer.Analyze(ctx, st, message)
	d := o.nextDecision(ctx, st)
	exec := o.executor.Execute(ctx, st, d)

	var sb strings.Builder
	for chunk := range o.composer.ComposeStream(ctx, st, d) {
		if chunk.Err != nil {
			continue
		}
		sb.WriteString(chunk.Content)
		if emit != nil {
			emit(chunk.Content)
		}
	}
	reply := sb.String()
	o.finalize(st, reply)

	if err := o.persist(sessionID, st); err != nil {
		return nil, err
	}
	return o.response(sessionID, reply, st, d, exec), nil
}

// GetState returns the current session snapshot.
func (o *Orchestrator) GetState(sessionID string) (*State, error) {
	return o.loadState(sessionID)
}

// SelectSuggestions syncs the set of ticked suggestions into the
// session. Newly ticked statements count as mentioned tasks; the
// conversational acknowledgment happens on the next turn.
func (o *Orchestrator) SelectSuggestions(sessionID string, ids []string) (*State, error) {
	st, err := o.loadState(sessionID)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(st.SelectedSuggestionIDs))
	for _, id := range st.SelectedSuggestionIDs {
		known[id] = true
	}
	texts := make(map[string]string, len(st.OfferedSuggestions))
	for _, s := range st.OfferedSuggestions {
		texts[s.ID] = s.Text
	}

	for _, id := range ids {
		if known[id] {
			continue
		}
		known[id] = true
		st.SelectedSuggestionIDs = append(st.SelectedSuggestionIDs, id)
		st.RaiseTaskCount(1)
		if text := texts[id]; text != "" {
			st.MentionedActivities = append(st.MentionedActivities, text)
		}
	}

	err = o.store.Patch(sessionID, map[string]any{
		"selectedSuggestionIds": st.SelectedSuggestionIDs,
		"estimatedTaskCount":    st.EstimatedTaskCount,
		"mentionedActivities":   st.MentionedActivities,
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (o *Orchestrator) nextDecision(ctx context.Context, st *State) Decision {
	if !st.WantsToStop && o.exitConditionsMet(st) {
		d := Decision{Action: ActionFinish}
		st.ActionsTaken = append(st.ActionsTaken, string(d.Action))
		return d
	}
	return o.policy.Decide(ctx, st)
}

// exitConditionsMet ends the conversation once the task list is
// clearly sufficient, independent of the per-turn policy.
func (o *Orchestrator) exitConditionsMet(st *State) bool {
	if st.WantsToStop {
		return true
	}
	if st.EstimatedTaskCount >= 10 && st.Coverage.CountAtLeast(LevelMedium) >= 3 {
		return true
	}
	return st.TurnCount >= 10 && st.EstimatedTaskCount >= 8
}

// dumpIsComprehensive decides whether an up-front task list already
// covers the occupation well enough to skip the interview.
func (o *Orchestrator) dumpIsComprehensive(ctx context.Context, st *State) bool {
	if st.EstimatedTaskCount >= 10 && st.Coverage.CountAtLeast(LevelMedium) >= 3 {
		return true
	}
	if o.llm == nil || !o.llm.Configured() || o.taxonomy == nil || !o.taxonomy.Configured() {
		return false
	}

	refs, err := o.taxonomy.ReferenceTasks(ctx, st.JobTitle, 0)
	if err != nil || len(refs) == 0 {
		return false
	}
	st.CachedTaxonomyTasks = refs
	st.TaxonomyTasksFetched = true

	prompt := fmt.Sprintf(comprehensivenessPrompt,
		st.JobTitle,
		bulletList(st.MentionedActivities),
		bulletList(refs),
	)
	var out struct {
		Comprehensive bool `json:"comprehensive"`
	}
	if err := o.llm.CompleteStructured(ctx, "", prompt, &out); err != nil {
		return false
	}
	return out.Comprehensive
}

func (o *Orchestrator) finalize(st *State, reply string) {
	st.Transcript = append(st.Transcript, Turn{Role: "assistant", Text: reply})
	st.AcknowledgedSelections = len(st.SelectedSuggestionIDs)
}

func (o *Orchestrator) loadState(sessionID string) (*State, error) {
	rec, err := o.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	var st State
	if err := json.Unmarshal(rec.State, &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &st, nil
}

func (o *Orchestrator) persist(sessionID string, st *State) error {
	state, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return o.store.Put(sessionID, state)
}

func (o *Orchestrator) response(sessionID, message string, st *State, d Decision, exec ExecResult) *ChatResponse {
	return &ChatResponse{
		SessionID:             sessionID,
		Message:               message,
		Suggestions:           exec.Suggestions,
		ShouldShowSuggestions: d.Action == ActionShowSuggestions && len(exec.Suggestions) > 0,
		IsComplete:            exec.ShouldFinish,
		ToolUsed:              string(d.Action),
		UpdatedState:          st,
	}
}
