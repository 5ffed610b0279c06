package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
)

// Composer turns a decision into user-facing text. Every action has a
// template fallback so a dead completion service never breaks a turn.
type Composer struct {
	llm    llm.Client
	logger zerolog.Logger
}

func NewComposer(client llm.Client) *Composer {
	return &Composer{
		llm:    client,
		logger: log.With().Str("component", "composer").Logger(),
	}
}

func (c *Composer) Compose(ctx context.Context, st *State, d Decision) string {
	return acknowledgmentPrefix(st) + c.composeBody(ctx, st, d)
}

// ComposeStream yields the reply as it is produced. The
// acknowledgment prefix arrives first; on any model failure the
// template text is emitted as a single chunk.
func (c *Composer) ComposeStream(ctx context.Context, st *State, d Decision) <-chan llm.StreamChunk {
	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)

		if prefix := acknowledgmentPrefix(st); prefix != "" {
			out <- llm.StreamChunk{Content: prefix}
		}

		if c.llm == nil || !c.llm.Configured() {
			out <- llm.StreamChunk{Content: fallbackText(st, d)}
			return
		}

		stream, err := c.llm.CompleteStream(ctx, fmt.Sprintf(composeSystemPrompt, st.JobTitle), c.promptFor(st, d))
		if err != nil {
			out <- llm.StreamChunk{Content: fallbackText(st, d)}
			return
		}

		streamed := false
		for chunk := range stream {
			if chunk.Err != nil {
				c.logger.Warn().Err(chunk.Err).Msg("stream interrupted")
				if !streamed {
					out <- llm.StreamChunk{Content: fallbackText(st, d)}
				}
				return
			}
			streamed = true
			out <- chunk
		}
		if !streamed {
			out <- llm.StreamChunk{Content: fallbackText(st, d)}
		}
	}()
	return out
}

func (c *Composer) composeBody(ctx context.Context, st *State, d Decision) string {
	if c.llm == nil || !c.llm.Configured() {
		return fallbackText(st, d)
	}

	text, err := c.llm.Complete(ctx, fmt.Sprintf(composeSystemPrompt, st.JobTitle), c.promptFor(st, d))
	if err != nil {
		c.logger.Warn().Err(err).Str("action", string(d.Action)).Msg("compose failed, using template")
		return fallbackText(st, d)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fallbackText(st, d)
	}
	return text
}

func (c *Composer) promptFor(st *State, d Decision) string {
	switch d.Action {
	case ActionOpen:
		return fmt.Sprintf(composeOpenPrompt, st.JobTitle)
	case ActionAskGapQuestion:
		question := d.Question
		if question == "" {
			question = fallbackText(st, d)
		}
		return fmt.Sprintf(composeGapQuestionPrompt, question)
	case ActionShowSuggestions:
		return composeShowSuggestionsPrompt
	case ActionOfferToFinish:
		return fmt.Sprintf(composeOfferToFinishPrompt, st.EstimatedTaskCount)
	case ActionFinish:
		return fmt.Sprintf(composeFinishPrompt, st.EstimatedTaskCount)
	default:
		return fmt.Sprintf(composeEncourageMorePrompt, st.EstimatedTaskCount)
	}
}

func fallbackText(st *State, d Decision) string {
	switch d.Action {
	case ActionOpen:
		return fmt.Sprintf("Hi! I'd love to learn about your work as a %s. What are the main tasks you do in a typical week?", st.JobTitle)
	case ActionAskGapQuestion:
		if d.Question != "" {
			return d.Question
		}
		return "Are there any other parts of your job we haven't covered yet?"
	case ActionShowSuggestions:
		return "Here are some tasks that are common for roles like yours. Do any of these apply to you?"
	case ActionOfferToFinish:
		return fmt.Sprintf("You've shared %d tasks, which gives a good picture of your role. Is there anything else to add, or shall we wrap up?", st.EstimatedTaskCount)
	case ActionFinish:
		return fmt.Sprintf("Thanks for sharing! I've recorded %d tasks from our conversation. You can review them now.", st.EstimatedTaskCount)
	default:
		if st.EstimatedTaskCount == 0 {
			return "Tell me about the tasks you do in your role. What does a typical day look like?"
		}
		return fmt.Sprintf("Great, you've mentioned %d tasks so far. What else do you do in your role?", st.EstimatedTaskCount)
	}
}

func acknowledgmentPrefix(st *State) string {
	n := st.UnacknowledgedSelections()
	switch {
	case n == 0:
		return ""
	case n == 1:
		return "Got it, I've noted that task! "
	case st.AcknowledgedSelections == 0:
		return fmt.Sprintf("Great, I see you've added %d tasks from the suggestions. ", n)
	default:
		return fmt.Sprintf("Nice, %d more tasks added! ", n)
	}
}
