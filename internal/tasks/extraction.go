package tasks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/chat"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
)

const maxExtracted = 20

var (
	taskVerbRe = regexp.MustCompile(`(?i)\b(manag|writ|review|analyz|creat|develop|coordinat|prepar|organiz|plan|teach|train|design|build|test|maintain|report|present|research|schedul|supervis|support|monitor|evaluat|process|respond|communicat|lead|document|implement|assist|overse|conduct|operat|inspect|updat|collect|negotiat|sell|install|repair|clean|cook|driv|advis|calculat|budget|audit|recruit|interview|track|assembl|answer|meet|order|handl|serv|fix|check|run|set up)(e|es|s|ed|ing)?\b`)

	phraseSplitRe = regexp.MustCompile(`[,;.\n]+`)
)

// Extractor pulls discrete task phrases out of a finished transcript.
type Extractor struct {
	llm    llm.Client
	logger zerolog.Logger
}

func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{
		llm:    client,
		logger: log.With().Str("component", "extract").Logger(),
	}
}

// Extract returns raw task phrases in first-mention order, capped at 20.
func (e *Extractor) Extract(ctx context.Context, jobTitle string, transcript []chat.Turn) []string {
	if e.llm != nil && e.llm.Configured() {
		var out struct {
			Tasks []string `json:"tasks"`
		}
		prompt := fmt.Sprintf(extractPrompt, jobTitle, renderTranscript(transcript))
		if err := e.llm.CompleteStructured(ctx, "", prompt, &out); err == nil {
			if phrases := cleanPhrases(out.Tasks); len(phrases) > 0 {
				return phrases
			}
		} else {
			e.logger.Warn().Err(err).Msg("model extraction failed, using splitter")
		}
	}
	return e.extractHeuristic(transcript)
}

// extractHeuristic splits user turns on punctuation and keeps
// verb-bearing phrases. When no phrase qualifies, whole user messages
// stand in so a terse session still yields something.
func (e *Extractor) extractHeuristic(transcript []chat.Turn) []string {
	var phrases []string
	seen := map[string]bool{}

	add := func(phrase string) bool {
		key := strings.ToLower(strings.TrimSpace(phrase))
		if key == "" || seen[key] {
			return len(phrases) < maxExtracted
		}
		seen[key] = true
		phrases = append(phrases, strings.TrimSpace(phrase))
		return len(phrases) < maxExtracted
	}

	for _, turn := range transcript {
		if turn.Role != "user" {
			continue
		}
		for _, segment := range phraseSplitRe.Split(turn.Text, -1) {
			segment = strings.TrimSpace(segment)
			if len(segment) > 15 && taskVerbRe.MatchString(segment) {
				if !add(segment) {
					return phrases
				}
			}
		}
	}

	if len(phrases) > 0 {
		return phrases
	}

	// Rescue pass: nothing split out, take whole messages.
	for _, turn := range transcript {
		if turn.Role != "user" {
			continue
		}
		text := strings.TrimSpace(turn.Text)
		if len(text) <= 20 {
			continue
		}
		if len(text) > 200 {
			text = text[:200]
		}
		if !add(text) {
			break
		}
	}
	return phrases
}

func renderTranscript(transcript []chat.Turn) string {
	var sb strings.Builder
	for _, turn := range transcript {
		sb.WriteString(turn.Role)
		sb.WriteString(": ")
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func cleanPhrases(raw []string) []string {
	var phrases []string
	seen := map[string]bool{}
	for _, phrase := range raw {
		phrase = strings.TrimSpace(phrase)
		key := strings.ToLower(phrase)
		if phrase == "" || seen[key] {
			continue
		}
		seen[key] = true
		phrases = append(phrases, phrase)
		if len(phrases) == maxExtracted {
			break
		}
	}
	return phrases
}
