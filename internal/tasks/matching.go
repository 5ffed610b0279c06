package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/taxonomy"
)

const matchTopK = 5

// Matcher links a task record to the closest taxonomy task. Every
// failure mode leaves the record unmatched rather than erroring, so one
// bad item never sinks a batch.
type Matcher struct {
	llm      llm.Client
	taxonomy taxonomy.Client
	logger   zerolog.Logger
}

func NewMatcher(client llm.Client, tax taxonomy.Client) *Matcher {
	return &Matcher{
		llm:      client,
		taxonomy: tax,
		logger:   log.With().Str("component", "match").Logger(),
	}
}

func (m *Matcher) Match(ctx context.Context, rec TaskRecord) TaskRecord {
	if m.taxonomy == nil || !m.taxonomy.Configured() {
		return rec
	}

	hits, err := m.taxonomy.SearchTasks(ctx, rec.Statement, matchTopK, nil)
	if err != nil {
		m.logger.Warn().Err(err).Str("task", rec.ID).Msg("taxonomy search failed")
		return rec
	}
	if len(hits) == 0 {
		return rec
	}

	if m.llm != nil && m.llm.Configured() {
		if matched, ok := m.pickWithModel(ctx, rec, hits); ok {
			return matched
		}
	}
	return matchByScore(rec, hits[0])
}

func (m *Matcher) pickWithModel(ctx context.Context, rec TaskRecord, hits []taxonomy.TaskHit) (TaskRecord, bool) {
	candidates := make([]string, len(hits))
	for i, hit := range hits {
		candidates[i] = hit.Statement
	}

	var out struct {
		BestIndex  int    `json:"bestIndex"`
		Confidence string `json:"confidence"`
	}
	prompt := fmt.Sprintf(matchPrompt, rec.Statement, numberedZeroList(candidates))
	if err := m.llm.CompleteStructured(ctx, "", prompt, &out); err != nil {
		m.logger.Warn().Err(err).Str("task", rec.ID).Msg("model match failed, using score threshold")
		return rec, false
	}

	if out.BestIndex == -1 {
		// Model says nothing fits; the record stays unmatched.
		return rec, true
	}
	if out.BestIndex < 0 || out.BestIndex >= len(hits) {
		m.logger.Warn().Int("index", out.BestIndex).Str("task", rec.ID).Msgf("model match index out of range: %v", llm.ErrInvalidOutput)
		return rec, false
	}

	confidence := strings.ToLower(out.Confidence)
	switch confidence {
	case "high", "medium", "low":
	default:
		confidence = "low"
	}
	return link(rec, hits[out.BestIndex], confidence), true
}

// matchByScore takes the top retrieval hit and grades confidence by its
// score. Retrieval already filtered the candidates, so even a weak top
// hit links at low confidence.
func matchByScore(rec TaskRecord, hit taxonomy.TaskHit) TaskRecord {
	switch {
	case hit.Score >= 0.6:
		return link(rec, hit, "high")
	case hit.Score >= 0.45:
		return link(rec, hit, "medium")
	default:
		return link(rec, hit, "low")
	}
}

func link(rec TaskRecord, hit taxonomy.TaskHit, confidence string) TaskRecord {
	rec.TaxonomyID = hit.ID
	rec.TaxonomyStatement = hit.Statement
	rec.OccupationCode = hit.OccupationCode
	rec.OccupationTitle = hit.OccupationTitle
	rec.MatchScore = hit.Score
	rec.Confidence = confidence
	rec.Matched = true
	return rec
}
