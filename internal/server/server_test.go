package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/chat"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/config"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/session"
	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/tasks"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := session.Open(filepath.Join(t.TempDir(), "sessions.db"), time.Hour)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	s := New(config.DefaultConfig(),
		chat.NewOrchestrator(nil, nil, store),
		tasks.NewPipeline(nil, nil),
		nil, nil)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func startSession(t *testing.T, ts *httptest.Server, jobTitle string) string {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{"jobTitle": jobTitle})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status = %d, want 201", resp.StatusCode)
	}
	var body chat.ChatResponse
	decodeBody(t, resp, &body)
	if body.SessionID == "" {
		t.Fatal("missing sessionId")
	}
	return body.SessionID
}

func TestChat_StartAndMessage(t *testing.T) {
	ts := newTestServer(t)

	id := startSession(t, ts, "Chef")

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{
		"sessionId": id,
		"message":   "I cook meals and order the produce deliveries",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("message status = %d, want 200", resp.StatusCode)
	}
	var body chat.ChatResponse
	decodeBody(t, resp, &body)
	if body.Message == "" {
		t.Error("empty reply")
	}
	if body.UpdatedState.TurnCount != 1 {
		t.Errorf("turnCount = %d, want 1", body.UpdatedState.TurnCount)
	}
}

func TestChat_Validation(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing jobTitle status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/chat", map[string]any{"sessionId": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing message status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChat_UnknownSession(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chat", map[string]any{
		"sessionId": "missing",
		"message":   "hello",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["error"] != "Session not found or expired" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestChat_GetAndPatch(t *testing.T) {
	ts := newTestServer(t)
	id := startSession(t, ts, "Chef")

	resp, err := http.Get(ts.URL + "/api/chat?sessionId=" + id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var snapshot struct {
		SessionID string      `json:"sessionId"`
		State     *chat.State `json:"state"`
	}
	decodeBody(t, resp, &snapshot)
	if snapshot.State == nil || snapshot.State.JobTitle != "Chef" {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	data, _ := json.Marshal(map[string]any{
		"sessionId":             id,
		"selectedSuggestionIds": []string{"s1", "s2"},
	})
	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/chat", bytes.NewReader(data))
	patchResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patchResp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", patchResp.StatusCode)
	}
	decodeBody(t, patchResp, &snapshot)
	if len(snapshot.State.SelectedSuggestionIDs) != 2 {
		t.Errorf("selected = %v, want 2", snapshot.State.SelectedSuggestionIDs)
	}
}

func TestChat_StreamEvents(t *testing.T) {
	ts := newTestServer(t)
	id := startSession(t, ts, "Chef")

	resp := postJSON(t, ts.URL+"/api/chat/stream", map[string]any{
		"sessionId": id,
		"message":   "I cook meals for the lunch service",
	})
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	var types []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(line[len("data: "):]), &ev); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		types = append(types, ev["type"].(string))
	}

	if len(types) < 2 {
		t.Fatalf("events = %v, want chunks then done", types)
	}
	if types[len(types)-1] != "done" {
		t.Errorf("last event = %s, want done", types[len(types)-1])
	}
	for _, typ := range types[:len(types)-1] {
		if typ != "chunk" {
			t.Errorf("event = %s, want chunk", typ)
		}
	}
}

func TestChat_StreamUnknownSession(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chat/stream", map[string]any{
		"sessionId": "missing",
		"message":   "hello",
	})
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var sawError bool
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(line[len("data: "):]), &ev); err != nil {
			t.Fatalf("bad event: %v", err)
		}
		if ev.Type == "error" {
			sawError = true
			if ev.Error != "Session not found or expired" {
				t.Errorf("error = %q", ev.Error)
			}
		}
	}
	if !sawError {
		t.Fatal("no error event emitted")
	}
}

func TestTasks_ProcessAndMatch(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/tasks/process", map[string]any{
		"jobTitle": "Chef",
		"transcript": []map[string]string{
			{"role": "user", "text": "I manage the kitchen inventory, and I train all the new cooks"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process status = %d", resp.StatusCode)
	}
	var processed struct {
		Tasks []tasks.TaskRecord `json:"tasks"`
	}
	decodeBody(t, resp, &processed)
	if len(processed.Tasks) == 0 {
		t.Fatal("no tasks extracted")
	}
	for _, rec := range processed.Tasks {
		if rec.Matched {
			t.Errorf("provisional record already matched: %+v", rec)
		}
	}

	resp = postJSON(t, ts.URL+"/api/tasks/match", map[string]any{"tasks": processed.Tasks})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("match status = %d", resp.StatusCode)
	}
	var matched struct {
		Tasks []tasks.TaskRecord `json:"tasks"`
	}
	decodeBody(t, resp, &matched)
	if len(matched.Tasks) != len(processed.Tasks) {
		t.Fatalf("match changed record count: %d vs %d", len(matched.Tasks), len(processed.Tasks))
	}

	resp = postJSON(t, ts.URL+"/api/tasks/process", map[string]any{"jobTitle": "Chef"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty transcript status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTaxonomySuggestions(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/taxonomy/suggestions?jobTitle=Chef")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		JobTitle    string   `json:"jobTitle"`
		Suggestions []string `json:"suggestions"`
	}
	decodeBody(t, resp, &body)
	if body.JobTitle != "Chef" || body.Suggestions == nil {
		t.Errorf("body = %+v, want empty list not null", body)
	}

	resp, err = http.Get(ts.URL + "/api/taxonomy/suggestions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing jobTitle status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body map[string]any
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["llmConfigured"] != false || body["taxonomyConfigured"] != false {
		t.Errorf("configured flags = %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/chat", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
