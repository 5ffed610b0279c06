package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/config"
)

func testConfig(url string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Provider.APIKey = "test-key"
	cfg.Provider.BaseURL = url
	cfg.Provider.Model = "gpt-test"
	return cfg
}

func TestComplete_RequestAndResponseParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("auth header mismatch")
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		msgs := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("messages = %d, want system + user", len(msgs))
		}

		resp := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"content": "hello there"},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	out, err := client.Complete(context.Background(), "be brief", "hi")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("out = %q", out)
	}
}

func TestComplete_NotConfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.APIKey = ""
	client := NewClient(cfg)

	if client.Configured() {
		t.Fatal("client should not report configured without api key")
	}
	_, err := client.Complete(context.Background(), "", "hi")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestComplete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	_, err := client.Complete(context.Background(), "", "hi")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestCompleteStructured_ParsesFencedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["temperature"].(float64) != 0.3 {
			t.Fatalf("expected temperature 0.3 for structured calls")
		}
		rf, ok := body["response_format"].(map[string]any)
		if !ok || rf["type"] != "json_object" {
			t.Fatalf("expected json_object response_format")
		}

		resp := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"content": "```json\n{\"tasks\":[\"Review applications\"],\"count\":1}\n```",
				},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	var out struct {
		Tasks []string `json:"tasks"`
		Count int      `json:"count"`
	}
	if err := client.CompleteStructured(context.Background(), "", "extract", &out); err != nil {
		t.Fatalf("CompleteStructured error: %v", err)
	}
	if len(out.Tasks) != 1 || out.Count != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestCompleteStructured_InvalidOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"content": "no json here at all"},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	var out map[string]any
	err := client.CompleteStructured(context.Background(), "", "extract", &out)
	if !errors.Is(err, ErrInvalidOutput) {
		t.Fatalf("err = %v, want ErrInvalidOutput", err)
	}
}

func TestCompleteStream_DeltaFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["stream"] != true {
			t.Fatalf("expected stream:true")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, word := range []string{"Tell", " me", " more"} {
			frame := map[string]any{
				"choices": []map[string]any{{
					"delta": map[string]any{"content": word},
				}},
			}
			data, _ := json.Marshal(frame)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	ch, err := client.CompleteStream(context.Background(), "", "hi")
	if err != nil {
		t.Fatalf("CompleteStream error: %v", err)
	}

	var got string
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("chunk error: %v", chunk.Err)
		}
		got += chunk.Content
	}
	if got != "Tell me more" {
		t.Fatalf("streamed = %q", got)
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"prefix {\"a\":1} suffix", `{"a":1}`},
		{"no object", ""},
		{"{broken", ""},
	}
	for _, tt := range tests {
		if got := extractJSONObject(tt.in); got != tt.want {
			t.Errorf("extractJSONObject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
