package tasks

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
)

const normalizeBatchSize = 10

// leadingFiller are tokens stripped from the front of a phrase before
// hunting for the action verb.
var leadingFiller = map[string]bool{
	"i": true, "we": true, "my": true, "our": true, "me": true,
	"also": true, "and": true, "then": true, "so": true, "to": true,
	"usually": true, "typically": true, "sometimes": true, "often": true,
	"just": true, "mostly": true, "mainly": true, "generally": true,
	"basically": true, "really": true, "currently": true,
}

// gerundBases fixes stems the mechanical -ing strip gets wrong.
var gerundBases = map[string]string{
	"writ": "write", "mak": "make", "tak": "take", "giv": "give",
	"manag": "manage", "schedul": "schedule", "prepar": "prepare",
	"creat": "create", "analyz": "analyze", "evaluat": "evaluate",
	"operat": "operate", "updat": "update", "coordinat": "coordinate",
	"communicat": "communicate", "negotiat": "negotiate", "driv": "drive",
	"serv": "serve", "handl": "handle", "organiz": "organize",
	"supervis": "supervise",
}

// Normalizer rewrites raw phrases as canonical verb-first statements.
type Normalizer struct {
	llm    llm.Client
	logger zerolog.Logger
}

func NewNormalizer(client llm.Client) *Normalizer {
	return &Normalizer{
		llm:    client,
		logger: log.With().Str("component", "normalize").Logger(),
	}
}

// Normalize processes phrases in batches of 10; any batch the model
// mishandles falls back to the rule-based rewrite, so output always
// pairs one statement per input phrase.
func (n *Normalizer) Normalize(ctx context.Context, phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for start := 0; start < len(phrases); start += normalizeBatchSize {
		end := start + normalizeBatchSize
		if end > len(phrases) {
			end = len(phrases)
		}
		out = append(out, n.normalizeBatch(ctx, phrases[start:end])...)
	}
	return out
}

func (n *Normalizer) normalizeBatch(ctx context.Context, batch []string) []string {
	if n.llm != nil && n.llm.Configured() {
		var out struct {
			Normalized []string `json:"normalized"`
		}
		prompt := fmt.Sprintf(normalizePrompt, numberedList(batch))
		err := n.llm.CompleteStructured(ctx, "", prompt, &out)
		if err == nil && len(out.Normalized) == len(batch) {
			statements := make([]string, len(batch))
			for i, s := range out.Normalized {
				s = strings.TrimSpace(s)
				if s == "" {
					s = normalizeRuleBased(batch[i])
				}
				statements[i] = s
			}
			return statements
		}
		if err != nil {
			n.logger.Warn().Err(err).Msg("model normalization failed, using rules")
		} else {
			n.logger.Warn().Int("want", len(batch)).Int("got", len(out.Normalized)).Msg("normalization count mismatch, using rules")
		}
	}

	statements := make([]string, len(batch))
	for i, phrase := range batch {
		statements[i] = normalizeRuleBased(phrase)
	}
	return statements
}

// normalizeRuleBased strips first-person framing, moves the first
// action verb to the front in base form, and caps length.
func normalizeRuleBased(phrase string) string {
	words := strings.Fields(strings.TrimSpace(phrase))
	for len(words) > 0 && leadingFiller[strings.ToLower(stripPunct(words[0]))] {
		words = words[1:]
	}

	// Drop anything before the first action verb ("responsible for
	// managing budgets" -> "managing budgets").
	for i, w := range words {
		if taskVerbRe.MatchString(w) {
			words = words[i:]
			words[0] = deGerund(strings.ToLower(stripPunct(words[0])))
			break
		}
	}

	// Inner possessives read oddly once the pronoun subject is gone.
	kept := words[:0]
	for _, w := range words {
		lw := strings.ToLower(stripPunct(w))
		if lw == "my" || lw == "our" {
			continue
		}
		kept = append(kept, w)
	}

	statement := strings.Join(kept, " ")
	if statement == "" {
		statement = strings.TrimSpace(phrase)
	}
	statement = capitalize(statement)
	if len(statement) > 100 {
		if cut := strings.LastIndex(statement[:100], " "); cut > 0 {
			statement = statement[:cut]
		} else {
			statement = statement[:100]
		}
	}
	return statement
}

func deGerund(word string) string {
	if !strings.HasSuffix(word, "ing") || len(word) <= 4 {
		return word
	}
	base := strings.TrimSuffix(word, "ing")
	if fixed, ok := gerundBases[base]; ok {
		return fixed
	}
	// Doubled final consonant: running -> run.
	if len(base) >= 2 && base[len(base)-1] == base[len(base)-2] && !isVowel(base[len(base)-1]) {
		return base[:len(base)-1]
	}
	return base
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func stripPunct(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func numberedList(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
	}
	return sb.String()
}
