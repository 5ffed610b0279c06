package tasks

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/chat"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/taxonomy"
)

// categoryKeywords drives the rule-based category guess for records
// that taxonomy matching could not place.
var categoryKeywords = map[string][]string{
	"information-input":       {"read", "research", "review", "gather", "collect", "monitor", "inspect", "data", "information", "track"},
	"mental-processes":        {"analyze", "decide", "plan", "evaluate", "calculate", "assess", "solve", "prioritize", "budget", "design", "diagnose"},
	"work-output":             {"write", "create", "build", "produce", "prepare", "develop", "make", "assemble", "repair", "draft", "document", "cook", "clean", "install"},
	"interacting-with-others": {"meet", "present", "coordinate", "train", "teach", "call", "client", "team", "customer", "communicate", "negotiate", "supervise", "serve", "sell"},
}

// Pipeline turns a finished transcript into taxonomy-linked task
// records. ProcessFast is the blocking part of the flow; Match can run
// later and be merged back by record id.
type Pipeline struct {
	extractor  *Extractor
	normalizer *Normalizer
	deduper    *Deduper
	matcher    *Matcher
	logger     zerolog.Logger
}

func NewPipeline(client llm.Client, tax taxonomy.Client) *Pipeline {
	return &Pipeline{
		extractor:  NewExtractor(client),
		normalizer: NewNormalizer(client),
		deduper:    NewDeduper(client),
		matcher:    NewMatcher(client, tax),
		logger:     log.With().Str("component", "pipeline").Logger(),
	}
}

// ProcessFast runs extraction, normalization, and deduplication and
// returns provisional records with no taxonomy links yet.
func (p *Pipeline) ProcessFast(ctx context.Context, jobTitle string, transcript []chat.Turn) []TaskRecord {
	phrases := p.extractor.Extract(ctx, jobTitle, transcript)
	statements := p.normalizer.Normalize(ctx, phrases)
	statements = p.deduper.Dedupe(ctx, statements)

	records := make([]TaskRecord, 0, len(statements))
	for _, statement := range statements {
		records = append(records, TaskRecord{
			ID:        uuid.NewString(),
			Statement: statement,
			Category:  inferCategory(statement),
		})
	}
	p.logger.Info().Str("jobTitle", jobTitle).Int("tasks", len(records)).Msg("processed transcript")
	return records
}

// Match enriches records with taxonomy links. Already matched records
// pass through untouched, so re-running after a partial failure is
// safe. Order is preserved.
func (p *Pipeline) Match(ctx context.Context, records []TaskRecord) []TaskRecord {
	out := make([]TaskRecord, len(records))
	for i, rec := range records {
		if rec.Matched {
			out[i] = rec
			continue
		}
		matched := p.matcher.Match(ctx, rec)
		if matched.Category == "" {
			matched.Category = inferCategory(matched.Statement)
		}
		out[i] = matched
	}
	return out
}

// inferCategory guesses the generalized work activity bucket from the
// statement wording. Empty when nothing matches.
func inferCategory(statement string) string {
	lower := strings.ToLower(statement)
	bestCategory := ""
	bestCount := 0
	for _, category := range chat.CategoryNames {
		count := 0
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(lower, kw) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestCategory = category
		}
	}
	return bestCategory
}
