package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/config"
)

const defaultBaseURL = "https://api.openai.com/v1"

var (
	// ErrServiceUnavailable means the provider is not configured or the call failed.
	ErrServiceUnavailable = errors.New("completion service unavailable")
	// ErrInvalidOutput means the provider answered but the content was unusable.
	ErrInvalidOutput = errors.New("completion output invalid")
)

// StreamChunk is one incremental piece of a streamed completion.
type StreamChunk struct {
	Content string
	Err     error
}

// Client is the completion surface the rest of the service depends on.
// Every method makes at most one provider attempt; callers own fallbacks.
type Client interface {
	Configured() bool
	Complete(ctx context.Context, system, prompt string) (string, error)
	CompleteStream(ctx context.Context, system, prompt string) (<-chan StreamChunk, error)
	CompleteStructured(ctx context.Context, system, prompt string, out any) error
}

type httpClient struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	httpc     *http.Client
	logger    zerolog.Logger
}

func NewClient(cfg *config.Config) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		model:     config.DefaultModel,
		maxTokens: config.DefaultMaxTokens,
		httpc:     &http.Client{Timeout: time.Duration(config.DefaultLLMTimeoutMs) * time.Millisecond},
		logger:    log.With().Str("component", "llm").Logger(),
	}
	if cfg == nil {
		return c
	}
	c.apiKey = strings.TrimSpace(cfg.Provider.APIKey)
	if url := strings.TrimSpace(cfg.Provider.BaseURL); url != "" {
		c.baseURL = url
	}
	if cfg.Provider.Model != "" {
		c.model = cfg.Provider.Model
	}
	if cfg.Provider.MaxTokens > 0 {
		c.maxTokens = cfg.Provider.MaxTokens
	}
	if cfg.Provider.TimeoutMs > 0 {
		c.httpc.Timeout = time.Duration(cfg.Provider.TimeoutMs) * time.Millisecond
	}
	return c
}

func (c *httpClient) Configured() bool {
	return c.apiKey != ""
}

func (c *httpClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	body := c.requestBody(system, prompt, false, false)
	content, err := c.send(ctx, body)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	return content, nil
}

func (c *httpClient) CompleteStructured(ctx context.Context, system, prompt string, out any) error {
	body := c.requestBody(system, prompt, true, false)
	content, err := c.send(ctx, body)
	if err != nil {
		return fmt.Errorf("complete structured: %w", err)
	}

	obj := extractJSONObject(content)
	if obj == "" {
		return fmt.Errorf("complete structured: no JSON object in output: %w", ErrInvalidOutput)
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return fmt.Errorf("complete structured: decode output: %v: %w", err, ErrInvalidOutput)
	}
	return nil
}

func (c *httpClient) CompleteStream(ctx context.Context, system, prompt string) (<-chan StreamChunk, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("complete stream: missing api key: %w", ErrServiceUnavailable)
	}

	body := c.requestBody(system, prompt, false, true)
	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("complete stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("complete stream: http %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(respBody)), ErrServiceUnavailable)
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			delta := gjson.Get(data, "choices.0.delta.content")
			if delta.Exists() && delta.String() != "" {
				select {
				case ch <- StreamChunk{Content: delta.String()}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Err: fmt.Errorf("read stream: %w", err)}
		}
	}()
	return ch, nil
}

func (c *httpClient) requestBody(system, prompt string, jsonObject, stream bool) map[string]any {
	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":      c.model,
		"messages":   messages,
		"max_tokens": c.maxTokens,
	}
	if jsonObject {
		body["temperature"] = 0.3
		body["response_format"] = map[string]string{"type": "json_object"}
	} else {
		body["temperature"] = 0.7
	}
	if stream {
		body["stream"] = true
	}
	return body
}

func (c *httpClient) send(ctx context.Context, body map[string]any) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("missing api key: %w", ErrServiceUnavailable)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("provider error")
		return "", fmt.Errorf("http %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(respBody)), ErrServiceUnavailable)
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %v: %w", err, ErrInvalidOutput)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("empty choices: %w", ErrInvalidOutput)
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty content: %w", ErrInvalidOutput)
	}
	return content, nil
}

func (c *httpClient) post(ctx context.Context, body map[string]any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	baseURL := strings.TrimRight(c.baseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %v: %w", err, ErrServiceUnavailable)
	}
	return resp, nil
}

// extractJSONObject pulls the first balanced JSON object out of model
// output, tolerating markdown fences and prose around it.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	candidate := content[start : end+1]
	if !gjson.Valid(candidate) {
		return ""
	}
	return candidate
}
