package taxonomy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/config"
)

func testClient(url string) Client {
	cfg := config.DefaultConfig()
	cfg.Taxonomy.BaseURL = url
	cfg.Taxonomy.APIKey = "tax-key"
	return NewClient(cfg)
}

func TestSearchTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/namespaces/tasks/search") {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tax-key" {
			t.Fatalf("auth header mismatch")
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "review grant applications" || req.TopK != 5 {
			t.Fatalf("unexpected request: %+v", req)
		}

		resp := searchResponse{Hits: []searchHit{
			{ID: "t1", Score: 0.82, Fields: map[string]string{
				"statement":        "Review grant applications for completeness",
				"occupation_code":  "13-2072.00",
				"occupation_title": "Loan Officers",
			}},
			{ID: "t2", Score: 0.4, Fields: map[string]string{}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	hits, err := testClient(srv.URL).SearchTasks(context.Background(), "review grant applications", 5, nil)
	if err != nil {
		t.Fatalf("SearchTasks error: %v", err)
	}
	// Hits without a statement field are dropped.
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].ID != "t1" || hits[0].Score != 0.82 {
		t.Fatalf("unexpected hit: %+v", hits[0])
	}
	if hits[0].OccupationCode != "13-2072.00" {
		t.Fatalf("occupation code = %q", hits[0].OccupationCode)
	}
}

func TestSearchTasks_Unconfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Taxonomy.BaseURL = ""
	client := NewClient(cfg)

	hits, err := client.SearchTasks(context.Background(), "anything", 5, nil)
	if err != nil {
		t.Fatalf("unconfigured search should not error, got %v", err)
	}
	if hits != nil {
		t.Fatalf("expected no hits, got %v", hits)
	}
}

func TestReferenceTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if strings.Contains(r.URL.Path, "/namespaces/jobs/") {
			resp := searchResponse{Hits: []searchHit{
				{ID: "o1", Score: 0.71, Fields: map[string]string{
					"occupation_code":  "19-3051.00",
					"occupation_title": "Urban Planners",
				}},
			}}
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		if req.Filter["occupation_code"] != "19-3051.00" {
			t.Fatalf("expected occupation filter, got %+v", req.Filter)
		}
		resp := searchResponse{Hits: []searchHit{
			{ID: "t1", Score: 0.9, Fields: map[string]string{"statement": "Design urban development plans"}},
			{ID: "t2", Score: 0.8, Fields: map[string]string{"statement": "Advise planning officials"}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tasks, err := testClient(srv.URL).ReferenceTasks(context.Background(), "Urban Planner", 15)
	if err != nil {
		t.Fatalf("ReferenceTasks error: %v", err)
	}
	if len(tasks) != 2 || tasks[0] != "Design urban development plans" {
		t.Fatalf("unexpected tasks: %v", tasks)
	}
}

func TestReferenceTasks_LowOccupationScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := searchResponse{Hits: []searchHit{
			{ID: "o1", Score: 0.12, Fields: map[string]string{"occupation_code": "11-1011.00"}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tasks, err := testClient(srv.URL).ReferenceTasks(context.Background(), "Zorbologist", 15)
	if err != nil {
		t.Fatalf("ReferenceTasks error: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no reference tasks below score floor, got %v", tasks)
	}
}

func TestReferenceTasks_SoftFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tasks, err := testClient(srv.URL).ReferenceTasks(context.Background(), "Nurse", 15)
	if err != nil {
		t.Fatalf("ReferenceTasks should fail soft, got %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty tasks, got %v", tasks)
	}
}
