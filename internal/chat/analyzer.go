package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
)

var (
	stopRe = regexp.MustCompile(`(?i)\b(all done|i'?m good|that covers it|i think that'?s everything|that'?s (all|it|everything)|nothing (else|more)|no more|done|finished|complete)\b`)

	confirmRe = regexp.MustCompile(`(?i)\b(yes|yeah|yep|yup|correct|right|exactly|definitely|absolutely|for sure|all of (those|them)|those are right|sounds right)\b`)

	actionVerbRe = regexp.MustCompile(`(?i)\b(manag|writ|review|analyz|creat|develop|coordinat|prepar|organiz|plan|teach|train|design|build|test|maintain|report|present|research|schedul|supervis|support|monitor|evaluat|process|respond|communicat|lead|document|implement|assist|overse|conduct|operat|inspect|updat|collect|negotiat|sell|install|repair|clean|cook|driv|advis|calculat|budget|audit|recruit|interview|track|assembl|answer|meet)(e|es|s|ed|ing)?\b`)

	segmentRe = regexp.MustCompile(`[,;.\n]+`)
)

// coverageKeywords drives the heuristic coverage update. Categories
// follow CategoryNames order.
var coverageKeywords = map[string][]string{
	"information-input":       {"read", "research", "review", "gather", "collect", "monitor", "inspect", "data", "information", "email", "report"},
	"mental-processes":        {"analyze", "decide", "plan", "evaluate", "calculate", "assess", "solve", "prioritize", "budget", "design", "diagnose"},
	"work-output":             {"write", "create", "build", "produce", "prepare", "develop", "make", "assemble", "repair", "draft", "document"},
	"interacting-with-others": {"meet", "present", "coordinate", "train", "teach", "call", "client", "team", "customer", "communicate", "negotiate", "supervise"},
}

type analysisResult struct {
	NewTaskCount  int               `json:"newTaskCount"`
	NewActivities []string          `json:"newActivities"`
	Coverage      map[string]string `json:"coverage"`
	Engagement    string            `json:"engagement"`
	WantsToStop   bool              `json:"wantsToStop"`
}

// Analyzer updates conversation state from each user utterance. Stop
// and confirmation detection are deterministic; the rest is model
// backed with a lexical heuristic fallback.
type Analyzer struct {
	llm    llm.Client
	logger zerolog.Logger
}

func NewAnalyzer(client llm.Client) *Analyzer {
	return &Analyzer{
		llm:    client,
		logger: log.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze returns a new state; the input state is never mutated.
func (a *Analyzer) Analyze(ctx context.Context, st *State, message string) *State {
	next := st.Clone()
	next.TurnCount++
	next.Transcript = append(next.Transcript, Turn{Role: "user", Text: message})

	if stopRe.MatchString(message) {
		next.WantsToStop = true
	}

	// Pending suggestions only live until the next message: folded in on
	// a confirmation, discarded otherwise.
	if len(next.PendingSuggestions) > 0 && confirmRe.MatchString(message) {
		next.MentionedActivities = append(next.MentionedActivities, next.PendingSuggestions...)
		next.RaiseTaskCount(len(next.PendingSuggestions))
	}
	next.PendingSuggestions = nil

	if a.llm != nil && a.llm.Configured() {
		var out analysisResult
		prompt := fmt.Sprintf(analyzePrompt, next.JobTitle, next.EstimatedTaskCount, message)
		if err := a.llm.CompleteStructured(ctx, "", prompt, &out); err == nil {
			a.apply(next, out)
			return next
		} else {
			a.logger.Warn().Err(err).Msg("structured analysis failed, using heuristic")
		}
	}

	a.applyHeuristic(next, message)
	return next
}

func (a *Analyzer) apply(st *State, out analysisResult) {
	delta := out.NewTaskCount
	if delta < len(out.NewActivities) {
		delta = len(out.NewActivities)
	}
	st.RaiseTaskCount(delta)

	for _, activity := range out.NewActivities {
		if trimmed := strings.TrimSpace(activity); trimmed != "" {
			st.MentionedActivities = append(st.MentionedActivities, trimmed)
		}
	}
	for category, level := range out.Coverage {
		st.Coverage.Raise(category, ParseLevel(level))
	}
	if lvl := ParseLevel(out.Engagement); lvl != LevelNone {
		st.Engagement = lvl
	}
	if out.WantsToStop {
		st.WantsToStop = true
	}
}

func (a *Analyzer) applyHeuristic(st *State, message string) {
	verbCount := len(actionVerbRe.FindAllString(message, -1))
	if verbCount > 5 {
		verbCount = 5
	}
	st.RaiseTaskCount(verbCount)

	for _, segment := range segmentRe.Split(message, -1) {
		segment = strings.TrimSpace(segment)
		if len(segment) > 10 && actionVerbRe.MatchString(segment) {
			st.MentionedActivities = append(st.MentionedActivities, segment)
		}
	}

	words := len(strings.Fields(message))
	switch {
	case words >= 50:
		st.Engagement = LevelHigh
	case words >= 20:
		st.Engagement = LevelMedium
	default:
		st.Engagement = LevelLow
	}

	matchedLevel := LevelLow
	if words >= 30 {
		matchedLevel = LevelMedium
	}
	lower := strings.ToLower(message)
	for category, keywords := range coverageKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				st.Coverage.Raise(category, matchedLevel)
				break
			}
		}
	}
}
