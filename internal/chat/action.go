package chat

// Action is the closed set of moves the conversation can make on a
// turn. Exactly one is active per turn.
type Action string

const (
	ActionOpen            Action = "open"
	ActionAskGapQuestion  Action = "ask-gap-question"
	ActionShowSuggestions Action = "show-suggestions"
	ActionEncourageMore   Action = "encourage-more"
	ActionOfferToFinish   Action = "offer-to-finish"
	ActionFinish          Action = "finish"
)

// ParseAction validates free text against the closed set.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionOpen, ActionAskGapQuestion, ActionShowSuggestions,
		ActionEncourageMore, ActionOfferToFinish, ActionFinish:
		return Action(s), true
	}
	return "", false
}

// Decision is the policy's output: the action plus optional parameters
// used only by ask-gap-question.
type Decision struct {
	Action   Action
	Question string
	GapArea  string
}
