package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "to": true, "with": true, "all": true,
	"any": true, "each": true, "every": true, "other": true, "their": true,
}

// Deduper merges statements that describe the same underlying task,
// keeping the most complete wording. Running it twice changes nothing.
type Deduper struct {
	llm    llm.Client
	logger zerolog.Logger
}

func NewDeduper(client llm.Client) *Deduper {
	return &Deduper{
		llm:    client,
		logger: log.With().Str("component", "dedupe").Logger(),
	}
}

func (d *Deduper) Dedupe(ctx context.Context, statements []string) []string {
	if len(statements) < 2 {
		return statements
	}

	if d.llm != nil && d.llm.Configured() {
		if groups, err := d.askModel(ctx, statements); err == nil {
			return representatives(statements, groups)
		} else {
			d.logger.Warn().Err(err).Msg("model dedupe failed, using lexical overlap")
		}
	}
	return representatives(statements, lexicalGroups(statements))
}

func (d *Deduper) askModel(ctx context.Context, statements []string) ([][]int, error) {
	var out struct {
		Groups [][]int `json:"groups"`
	}
	prompt := fmt.Sprintf(dedupePrompt, numberedZeroList(statements))
	if err := d.llm.CompleteStructured(ctx, "", prompt, &out); err != nil {
		return nil, err
	}

	// Every index exactly once, all in range.
	seen := make(map[int]bool, len(statements))
	for _, group := range out.Groups {
		for _, idx := range group {
			if idx < 0 || idx >= len(statements) || seen[idx] {
				return nil, fmt.Errorf("bad dedupe grouping: %w", llm.ErrInvalidOutput)
			}
			seen[idx] = true
		}
	}
	if len(seen) != len(statements) {
		return nil, fmt.Errorf("incomplete dedupe grouping: %w", llm.ErrInvalidOutput)
	}
	return out.Groups, nil
}

// lexicalGroups clusters by keyword overlap: Jaccard above 0.5 or
// containment above 0.7 joins two statements.
func lexicalGroups(statements []string) [][]int {
	keywordSets := make([]map[string]bool, len(statements))
	for i, s := range statements {
		keywordSets[i] = keywords(s)
	}

	assigned := make([]int, len(statements))
	for i := range assigned {
		assigned[i] = -1
	}

	var groups [][]int
	for i := range statements {
		if assigned[i] >= 0 {
			continue
		}
		groupIdx := len(groups)
		assigned[i] = groupIdx
		group := []int{i}
		for j := i + 1; j < len(statements); j++ {
			if assigned[j] >= 0 {
				continue
			}
			if sameTask(keywordSets[i], keywordSets[j]) {
				assigned[j] = groupIdx
				group = append(group, j)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

func sameTask(a, b map[string]bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if float64(inter)/float64(union) > 0.5 {
		return true
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	return float64(inter)/float64(smaller) > 0.7
}

func keywords(statement string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(statement)) {
		w = stripPunct(w)
		if len(w) < 3 || stopWords[w] {
			continue
		}
		set[w] = true
	}
	return set
}

// representatives keeps the longest statement per group, in the order
// each group first appears.
func representatives(statements []string, groups [][]int) []string {
	out := make([]string, 0, len(groups))
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		best := group[0]
		for _, idx := range group[1:] {
			if len(statements[idx]) > len(statements[best]) {
				best = idx
			}
		}
		out = append(out, statements[best])
	}
	return out
}

func numberedZeroList(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i, item)
	}
	return sb.String()
}
