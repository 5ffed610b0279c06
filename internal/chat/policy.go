package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/taxonomy"
)

// gapQuestions are the canned clarifying questions per coverage
// category, used when the model supplies none.
var gapQuestions = map[string]string{
	"information-input":       "What kinds of information or materials do you work with day to day?",
	"mental-processes":        "What decisions or plans do you typically have to make in your role?",
	"work-output":             "What do you produce or deliver as part of your work?",
	"interacting-with-others": "Who do you work with, train, or talk to as part of your job?",
}

type actionChoice struct {
	Action           string `json:"action"`
	Question         string `json:"question"`
	GapArea          string `json:"gapArea"`
	TaxonomyCoverage string `json:"taxonomyCoverage"`
}

// Policy selects the next conversational action. Deterministic rules
// run first; the model only chooses inside the space the guardrails
// allow.
type Policy struct {
	llm      llm.Client
	taxonomy taxonomy.Client
	logger   zerolog.Logger
}

func NewPolicy(client llm.Client, tax taxonomy.Client) *Policy {
	return &Policy{
		llm:      client,
		taxonomy: tax,
		logger:   log.With().Str("component", "policy").Logger(),
	}
}

// Decide picks the action for the current turn. It records decision
// bookkeeping (clarifying-question flag, action history) on the state.
func (p *Policy) Decide(ctx context.Context, st *State) Decision {
	d := p.decide(ctx, st)

	// offer-to-finish is never allowed before a clarifying question.
	if d.Action == ActionOfferToFinish && !st.HasAskedClarifyingQuestion {
		d = p.gapQuestion(st)
	}

	if d.Action == ActionAskGapQuestion {
		st.HasAskedClarifyingQuestion = true
	}
	st.ActionsTaken = append(st.ActionsTaken, string(d.Action))
	return d
}

func (p *Policy) decide(ctx context.Context, st *State) Decision {
	if st.TurnCount == 0 {
		return Decision{Action: ActionOpen}
	}
	if st.WantsToStop {
		return Decision{Action: ActionFinish}
	}
	if st.UnacknowledgedSelections() > 0 {
		if len(st.SelectedSuggestionIDs) >= 3 && st.EstimatedTaskCount >= 10 {
			return Decision{Action: ActionOfferToFinish}
		}
		return Decision{Action: ActionEncourageMore}
	}
	if st.TurnCount >= 3 && st.EstimatedTaskCount < 3 && st.SuggestionsShown < 3 {
		return Decision{Action: ActionShowSuggestions}
	}

	// Hard cutoffs hold no matter what the model would say.
	if st.EstimatedTaskCount >= 15 && st.HasAskedClarifyingQuestion {
		return Decision{Action: ActionOfferToFinish}
	}
	if st.EstimatedTaskCount >= 10 && st.TurnCount >= 6 && st.HasAskedClarifyingQuestion {
		return Decision{Action: ActionOfferToFinish}
	}

	if p.llm == nil || !p.llm.Configured() {
		return p.ruleFallback(st)
	}

	choice, err := p.askModel(ctx, st)
	if err != nil {
		p.logger.Warn().Err(err).Msg("model action selection failed, using rules")
		return p.ruleFallback(st)
	}
	return p.applyGuardrails(st, choice)
}

func (p *Policy) askModel(ctx context.Context, st *State) (actionChoice, error) {
	referenceBlock := ""
	if tasks := p.referenceTasks(ctx, st); len(tasks) > 0 {
		referenceBlock = fmt.Sprintf(referenceTasksBlock, "- "+strings.Join(tasks, "\n- "))
	}

	prompt := fmt.Sprintf(selectActionPrompt,
		st.JobTitle,
		st.TurnCount,
		st.EstimatedTaskCount,
		st.Engagement,
		st.Coverage.InformationInput,
		st.Coverage.MentalProcesses,
		st.Coverage.WorkOutput,
		st.Coverage.InteractingWithOthers,
		st.HasAskedClarifyingQuestion,
		st.SuggestionsShown,
		recentTranscript(st.Transcript, 6),
		referenceBlock,
	)

	var choice actionChoice
	if err := p.llm.CompleteStructured(ctx, "", prompt, &choice); err != nil {
		return actionChoice{}, err
	}

	switch Action(choice.Action) {
	case ActionAskGapQuestion, ActionShowSuggestions, ActionEncourageMore, ActionOfferToFinish:
	default:
		return actionChoice{}, fmt.Errorf("model chose unknown action %q: %w", choice.Action, llm.ErrInvalidOutput)
	}

	if lvl := ParseLevel(choice.TaxonomyCoverage); lvl != LevelNone {
		st.TaxonomyCoverage = lvl
	}
	return choice, nil
}

// referenceTasks fetches the matched occupation's task statements once
// per session and caches them on the state.
func (p *Policy) referenceTasks(ctx context.Context, st *State) []string {
	if st.TaxonomyTasksFetched {
		return st.CachedTaxonomyTasks
	}
	st.TaxonomyTasksFetched = true
	if p.taxonomy == nil || !p.taxonomy.Configured() {
		return nil
	}
	tasks, err := p.taxonomy.ReferenceTasks(ctx, st.JobTitle, 0)
	if err != nil {
		p.logger.Warn().Err(err).Msg("reference task lookup failed")
		return nil
	}
	st.CachedTaxonomyTasks = tasks
	return tasks
}

// applyGuardrails overrides the model's choice. Each check
// short-circuits in the stated order.
func (p *Policy) applyGuardrails(st *State, choice actionChoice) Decision {
	d := Decision{Action: Action(choice.Action), Question: choice.Question, GapArea: choice.GapArea}

	// Occupation duties already well covered per the model's read.
	if st.TaxonomyCoverage == LevelHigh && st.EstimatedTaskCount >= 8 && st.HasAskedClarifyingQuestion {
		return Decision{Action: ActionOfferToFinish}
	}

	if d.Action == ActionOfferToFinish && !st.HasAskedClarifyingQuestion {
		return p.gapQuestion(st)
	}

	if d.Action == ActionOfferToFinish {
		earlyExit := st.EstimatedTaskCount >= 10 &&
			st.Coverage.CountAtLeast(LevelMedium) >= 3 &&
			st.TurnCount >= 2
		if !earlyExit && !(st.TurnCount >= 5 && st.EstimatedTaskCount >= 10) {
			return Decision{Action: ActionEncourageMore}
		}
	}

	if d.Action == ActionShowSuggestions && st.SuggestionsShown >= 3 {
		return Decision{Action: ActionEncourageMore}
	}

	return d
}

// ruleFallback is the deterministic policy used whenever the model is
// unavailable or answers badly.
func (p *Policy) ruleFallback(st *State) Decision {
	if st.Engagement == LevelLow && st.SuggestionsShown < 3 {
		return Decision{Action: ActionShowSuggestions}
	}
	if _, lvl := st.Coverage.Lowest(); lvl == LevelNone && st.TurnCount >= 2 {
		return p.gapQuestion(st)
	}
	if st.EstimatedTaskCount >= 10 && st.TurnCount >= 5 && st.HasAskedClarifyingQuestion {
		return Decision{Action: ActionOfferToFinish}
	}
	if st.EstimatedTaskCount >= 10 && !st.HasAskedClarifyingQuestion {
		return p.gapQuestion(st)
	}
	return Decision{Action: ActionEncourageMore}
}

func (p *Policy) gapQuestion(st *State) Decision {
	category, _ := st.Coverage.Lowest()
	return Decision{
		Action:   ActionAskGapQuestion,
		Question: gapQuestions[category],
		GapArea:  category,
	}
}

func recentTranscript(transcript []Turn, limit int) string {
	start := len(transcript) - limit
	if start < 0 {
		start = 0
	}
	var sb strings.Builder
	for _, turn := range transcript[start:] {
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
