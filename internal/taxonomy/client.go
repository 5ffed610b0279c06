package taxonomy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lweisbord-apolitical/futura-survey-demo-aggregate-insights/internal/config"
)

// occupationMinScore is the floor below which a job-title lookup is
// treated as "no matching occupation".
const occupationMinScore = 0.3

// TaskHit is one scored task statement from the taxonomy index.
type TaskHit struct {
	ID              string  `json:"id"`
	Score           float64 `json:"score"`
	Statement       string  `json:"statement"`
	OccupationCode  string  `json:"occupationCode"`
	OccupationTitle string  `json:"occupationTitle"`
	TaskType        string  `json:"taskType,omitempty"`
}

// OccupationHit is one scored occupation from the job-title index.
type OccupationHit struct {
	Code  string  `json:"code"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// Client performs semantic search against the occupational taxonomy
// index. Scores are similarity in [0,1].
type Client interface {
	Configured() bool
	SearchTasks(ctx context.Context, query string, topK int, filter map[string]string) ([]TaskHit, error)
	SearchOccupations(ctx context.Context, jobTitle string, topK int) ([]OccupationHit, error)
	ReferenceTasks(ctx context.Context, jobTitle string, limit int) ([]string, error)
}

type httpSearcher struct {
	baseURL string
	apiKey  string
	taskNS  string
	occNS   string
	httpc   *http.Client
	logger  zerolog.Logger
}

type searchRequest struct {
	Query  string            `json:"query"`
	TopK   int               `json:"topK"`
	Filter map[string]string `json:"filter,omitempty"`
}

type searchResponse struct {
	Hits []searchHit `json:"hits"`
}

type searchHit struct {
	ID     string            `json:"id"`
	Score  float64           `json:"score"`
	Fields map[string]string `json:"fields"`
}

func NewClient(cfg *config.Config) Client {
	c := &httpSearcher{
		taskNS: config.DefaultTaskNamespace,
		occNS:  config.DefaultOccNamespace,
		httpc:  &http.Client{Timeout: time.Duration(config.DefaultSearchTimeout) * time.Millisecond},
		logger: log.With().Str("component", "taxonomy").Logger(),
	}
	if cfg == nil {
		return c
	}
	c.baseURL = strings.TrimSpace(cfg.Taxonomy.BaseURL)
	c.apiKey = strings.TrimSpace(cfg.Taxonomy.APIKey)
	if cfg.Taxonomy.TaskNamespace != "" {
		c.taskNS = cfg.Taxonomy.TaskNamespace
	}
	if cfg.Taxonomy.OccNamespace != "" {
		c.occNS = cfg.Taxonomy.OccNamespace
	}
	if cfg.Taxonomy.TimeoutMs > 0 {
		c.httpc.Timeout = time.Duration(cfg.Taxonomy.TimeoutMs) * time.Millisecond
	}
	return c
}

func (c *httpSearcher) Configured() bool {
	return c.baseURL != ""
}

func (c *httpSearcher) SearchTasks(ctx context.Context, query string, topK int, filter map[string]string) ([]TaskHit, error) {
	if !c.Configured() {
		return nil, nil
	}
	if topK <= 0 {
		topK = config.DefaultTaxonomyTopK
	}

	hits, err := c.search(ctx, c.taskNS, searchRequest{Query: query, TopK: topK, Filter: filter})
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}

	out := make([]TaskHit, 0, len(hits))
	for _, h := range hits {
		statement := h.Fields["statement"]
		if statement == "" {
			continue
		}
		out = append(out, TaskHit{
			ID:              h.ID,
			Score:           h.Score,
			Statement:       statement,
			OccupationCode:  h.Fields["occupation_code"],
			OccupationTitle: h.Fields["occupation_title"],
			TaskType:        h.Fields["task_type"],
		})
	}
	return out, nil
}

func (c *httpSearcher) SearchOccupations(ctx context.Context, jobTitle string, topK int) ([]OccupationHit, error) {
	if !c.Configured() {
		return nil, nil
	}
	if topK <= 0 {
		topK = 1
	}

	hits, err := c.search(ctx, c.occNS, searchRequest{Query: jobTitle, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("search occupations: %w", err)
	}

	out := make([]OccupationHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, OccupationHit{
			Code:  h.Fields["occupation_code"],
			Title: h.Fields["occupation_title"],
			Score: h.Score,
		})
	}
	return out, nil
}

// ReferenceTasks resolves a job title to its closest occupation and
// returns that occupation's task statements. Soft failure: any error
// along the way yields an empty list.
func (c *httpSearcher) ReferenceTasks(ctx context.Context, jobTitle string, limit int) ([]string, error) {
	if !c.Configured() || strings.TrimSpace(jobTitle) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = config.DefaultReferenceTasks
	}

	occs, err := c.SearchOccupations(ctx, jobTitle, 1)
	if err != nil {
		c.logger.Warn().Err(err).Str("jobTitle", jobTitle).Msg("occupation lookup failed")
		return nil, nil
	}
	if len(occs) == 0 || occs[0].Score < occupationMinScore || occs[0].Code == "" {
		return nil, nil
	}

	hits, err := c.SearchTasks(ctx, jobTitle, limit, map[string]string{"occupation_code": occs[0].Code})
	if err != nil {
		c.logger.Warn().Err(err).Str("occupation", occs[0].Code).Msg("reference task lookup failed")
		return nil, nil
	}

	statements := make([]string, 0, len(hits))
	for _, h := range hits {
		statements = append(statements, h.Statement)
	}
	return statements, nil
}

func (c *httpSearcher) search(ctx context.Context, namespace string, reqBody searchRequest) ([]searchHit, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.baseURL, "/") + "/namespaces/" + namespace + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded searchResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded.Hits, nil
}
