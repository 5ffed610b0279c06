package chat

// Level is an ordered coverage/engagement rating.
type Level string

const (
	LevelNone   Level = "none"
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

func (l Level) Rank() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether l is at or above other.
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank()
}

// ParseLevel maps free text to a Level, defaulting to none.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelLow, LevelMedium, LevelHigh:
		return Level(s)
	default:
		return LevelNone
	}
}

// Coverage tracks how much of each generalized work activity bucket
// the conversation has touched. Levels only ever increase.
type Coverage struct {
	InformationInput      Level `json:"informationInput"`
	MentalProcesses       Level `json:"mentalProcesses"`
	WorkOutput            Level `json:"workOutput"`
	InteractingWithOthers Level `json:"interactingWithOthers"`
}

// CategoryNames lists the four coverage buckets in display order.
var CategoryNames = []string{
	"information-input",
	"mental-processes",
	"work-output",
	"interacting-with-others",
}

func NewCoverage() Coverage {
	return Coverage{
		InformationInput:      LevelNone,
		MentalProcesses:       LevelNone,
		WorkOutput:            LevelNone,
		InteractingWithOthers: LevelNone,
	}
}

func (c Coverage) levels() [4]Level {
	return [4]Level{c.InformationInput, c.MentalProcesses, c.WorkOutput, c.InteractingWithOthers}
}

func (c *Coverage) setByIndex(i int, l Level) {
	switch i {
	case 0:
		c.InformationInput = l
	case 1:
		c.MentalProcesses = l
	case 2:
		c.WorkOutput = l
	case 3:
		c.InteractingWithOthers = l
	}
}

// Merge raises each category to the higher of the two levels. Levels
// never go down.
func (c *Coverage) Merge(other Coverage) {
	cur := c.levels()
	inc := other.levels()
	for i := range cur {
		if inc[i].Rank() > cur[i].Rank() {
			c.setByIndex(i, inc[i])
		}
	}
}

// Raise bumps a single category by its display name, honoring the
// monotonic invariant. Unknown names are ignored.
func (c *Coverage) Raise(category string, l Level) {
	for i, name := range CategoryNames {
		if name == category {
			if l.Rank() > c.levels()[i].Rank() {
				c.setByIndex(i, l)
			}
			return
		}
	}
}

// Lowest returns the least-covered category and its level.
func (c Coverage) Lowest() (string, Level) {
	levels := c.levels()
	lowIdx := 0
	for i, l := range levels {
		if l.Rank() < levels[lowIdx].Rank() {
			lowIdx = i
		}
	}
	return CategoryNames[lowIdx], levels[lowIdx]
}

// CountAtLeast counts categories at or above the given level.
func (c Coverage) CountAtLeast(l Level) int {
	n := 0
	for _, cur := range c.levels() {
		if cur.AtLeast(l) {
			n++
		}
	}
	return n
}

// Turn is one transcript entry.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Suggestion is one generated task statement the user can tick.
type Suggestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// State is the explicit memory of one elicitation session. The
// orchestrator owns it; the analyzer and policy are the only writers.
type State struct {
	JobTitle                   string       `json:"jobTitle"`
	TurnCount                  int          `json:"turnCount"`
	EstimatedTaskCount         int          `json:"estimatedTaskCount"`
	MentionedActivities        []string     `json:"mentionedActivities"`
	Coverage                   Coverage     `json:"coverage"`
	Engagement                 Level        `json:"engagement"`
	WantsToStop                bool         `json:"wantsToStop"`
	HasAskedClarifyingQuestion bool         `json:"hasAskedClarifyingQuestion"`
	SelectedSuggestionIDs      []string     `json:"selectedSuggestionIds"`
	AcknowledgedSelections     int          `json:"acknowledgedSelectionCount"`
	SuggestionsShown           int          `json:"suggestionsShownCount"`
	OfferedSuggestions         []Suggestion `json:"offeredSuggestions,omitempty"`
	PendingSuggestions         []string     `json:"pendingSuggestions,omitempty"`
	ShownSuggestionStatements  []string     `json:"shownSuggestionStatements,omitempty"`
	CachedTaxonomyTasks        []string     `json:"cachedTaxonomyTasks,omitempty"`
	TaxonomyTasksFetched       bool         `json:"taxonomyTasksFetched,omitempty"`
	TaxonomyCoverage           Level        `json:"taxonomyCoverage,omitempty"`
	Transcript                 []Turn       `json:"transcript"`
	ActionsTaken               []string     `json:"actionsTaken,omitempty"`
}

func NewState(jobTitle string) *State {
	return &State{
		JobTitle:              jobTitle,
		Coverage:              NewCoverage(),
		Engagement:            LevelMedium,
		MentionedActivities:   []string{},
		SelectedSuggestionIDs: []string{},
		Transcript:            []Turn{},
	}
}

// Clone returns a deep copy so analyzers can return a new value
// without aliasing slices with the stored state.
func (s *State) Clone() *State {
	next := *s
	next.MentionedActivities = append([]string(nil), s.MentionedActivities...)
	next.SelectedSuggestionIDs = append([]string(nil), s.SelectedSuggestionIDs...)
	next.OfferedSuggestions = append([]Suggestion(nil), s.OfferedSuggestions...)
	next.PendingSuggestions = append([]string(nil), s.PendingSuggestions...)
	next.ShownSuggestionStatements = append([]string(nil), s.ShownSuggestionStatements...)
	next.CachedTaxonomyTasks = append([]string(nil), s.CachedTaxonomyTasks...)
	next.Transcript = append([]Turn(nil), s.Transcript...)
	next.ActionsTaken = append([]string(nil), s.ActionsTaken...)
	return &next
}

// RaiseTaskCount adds newly surfaced tasks; the running estimate never
// decreases.
func (s *State) RaiseTaskCount(delta int) {
	if delta > 0 {
		s.EstimatedTaskCount += delta
	}
}

// UnacknowledgedSelections is how many ticked suggestions the
// conversation has not yet reacted to.
func (s *State) UnacknowledgedSelections() int {
	n := len(s.SelectedSuggestionIDs) - s.AcknowledgedSelections
	if n < 0 {
		return 0
	}
	return n
}
