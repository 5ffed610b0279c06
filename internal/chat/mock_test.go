package chat

import (
	"context"
	"encoding/json"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/taxonomy"
)

// fakeLLM is a scriptable completion client for tests.
type fakeLLM struct {
	configured   bool
	completeText string
	completeErr  error
	structured   func(prompt string, out any) error
	streamChunks []string
	streamErr    error
}

func (f *fakeLLM) Configured() bool { return f.configured }

func (f *fakeLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.completeText, nil
}

func (f *fakeLLM) CompleteStructured(ctx context.Context, system, prompt string, out any) error {
	if f.structured == nil {
		return llm.ErrServiceUnavailable
	}
	return f.structured(prompt, out)
}

func (f *fakeLLM) CompleteStream(ctx context.Context, system, prompt string) (<-chan llm.StreamChunk, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, chunk := range f.streamChunks {
			ch <- llm.StreamChunk{Content: chunk}
		}
	}()
	return ch, nil
}

// jsonInto scripts a structured response from literal JSON.
func jsonInto(data string) func(prompt string, out any) error {
	return func(prompt string, out any) error {
		return json.Unmarshal([]byte(data), out)
	}
}

type fakeTaxonomy struct {
	configured bool
	refTasks   []string
	taskHits   []taxonomy.TaskHit
	occHits    []taxonomy.OccupationHit
}

func (f *fakeTaxonomy) Configured() bool { return f.configured }

func (f *fakeTaxonomy) SearchTasks(ctx context.Context, query string, topK int, filter map[string]string) ([]taxonomy.TaskHit, error) {
	return f.taskHits, nil
}

func (f *fakeTaxonomy) SearchOccupations(ctx context.Context, jobTitle string, topK int) ([]taxonomy.OccupationHit, error) {
	return f.occHits, nil
}

func (f *fakeTaxonomy) ReferenceTasks(ctx context.Context, jobTitle string, limit int) ([]string, error) {
	return f.refTasks, nil
}
