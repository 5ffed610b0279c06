package tasks

import (
	"context"
	"encoding/json"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/llm"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/taxonomy"
)

type fakeLLM struct {
	configured bool
	structured func(prompt string, out any) error
}

func (f *fakeLLM) Configured() bool { return f.configured }

func (f *fakeLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	return "", llm.ErrServiceUnavailable
}

func (f *fakeLLM) CompleteStream(ctx context.Context, system, prompt string) (<-chan llm.StreamChunk, error) {
	return nil, llm.ErrServiceUnavailable
}

func (f *fakeLLM) CompleteStructured(ctx context.Context, system, prompt string, out any) error {
	if f.structured == nil {
		return llm.ErrServiceUnavailable
	}
	return f.structured(prompt, out)
}

func jsonInto(data string) func(prompt string, out any) error {
	return func(prompt string, out any) error {
		return json.Unmarshal([]byte(data), out)
	}
}

type fakeTaxonomy struct {
	configured  bool
	taskHits    []taxonomy.TaskHit
	searchErr   error
	searchCalls int
}

func (f *fakeTaxonomy) Configured() bool { return f.configured }

func (f *fakeTaxonomy) SearchTasks(ctx context.Context, query string, topK int, filter map[string]string) ([]taxonomy.TaskHit, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.taskHits, nil
}

func (f *fakeTaxonomy) SearchOccupations(ctx context.Context, jobTitle string, topK int) ([]taxonomy.OccupationHit, error) {
	return nil, nil
}

func (f *fakeTaxonomy) ReferenceTasks(ctx context.Context, jobTitle string, limit int) ([]string, error) {
	return nil, nil
}
