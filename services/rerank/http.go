package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tech-enerzal/TechEnerzal-oneAPI-hack-kpr/models"
)

// HTTPConfig configures a remote rerank service
type HTTPConfig struct {
	// URL of the rerank endpoint, e.g. http://localhost:8787/v1/rerank
	URL     string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// HTTPClient calls a Cohere-style rerank endpoint:
// {model, query, documents, top_n} -> {results: [{index, relevance_score}]}
type HTTPClient struct {
	config     HTTPConfig
	httpClient *http.Client
}

// NewHTTPClient creates a remote reranker
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank sends candidates to the service. Candidates the service leaves unscored are dropped.
func (c *HTTPClient) Rerank(ctx context.Context, query string, candidates []models.Document) ([]models.RankedPassage, error) {
	if len(candidates) == 0 {
		return []models.RankedPassage{}, nil
	}

	texts := make([]string, len(candidates))
	for i, d := range candidates {
		texts[i] = d.Text
	}

	body, err := json.Marshal(rerankRequest{
		Model:     c.config.Model,
		Query:     query,
		Documents: texts,
		TopN:      len(candidates),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling rerank service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decoding rerank response: %w", err)
	}

	if len(parsed.Results) == 0 {
		return nil, errors.New("rerank service returned no results")
	}

	scores := make([]*float64, len(candidates))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			return nil, fmt.Errorf("rerank service returned out of range index %d", r.Index)
		}
		if scores[r.Index] != nil {
			return nil, fmt.Errorf("rerank service returned index %d twice", r.Index)
		}
		score := r.RelevanceScore
		scores[r.Index] = &score
	}

	// collected in candidate order so the stable sort breaks ties by it
	out := make([]models.RankedPassage, 0, len(candidates))
	var unscored []models.RankedPassage
	for i, score := range scores {
		if score == nil {
			unscored = append(unscored, models.RankedPassage{Document: candidates[i], Score: Unscored})
			continue
		}
		out = append(out, models.RankedPassage{Document: candidates[i], Score: *score})
	}

	sortPassages(out)
	return append(out, unscored...), nil
}
