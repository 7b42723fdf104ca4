// Package rerank provides a cross-encoder reranking client compatible
// with the text-embeddings-inference /rerank endpoint. It implements
// retrieval.Reranker; callers wrap it so a reranker outage degrades to
// the pre-rerank ordering instead of failing the request.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const rerankTimeout = 30 * time.Second

// Client scores (query, text) pairs against a remote cross-encoder.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for the given endpoint. httpClient may be nil to
// use a default client with a 30s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: rerankTimeout}
	}

	return &Client{baseURL: baseURL, client: httpClient}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one relevance score per text, in input order.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating rerank request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling rerank API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck // best-effort drain before close.
		return nil, fmt.Errorf("rerank API returned status %d", resp.StatusCode)
	}

	var results []rerankResult

	limited := io.LimitReader(resp.Body, 10<<20) // 10 MB
	if err := json.NewDecoder(limited).Decode(&results); err != nil {
		return nil, fmt.Errorf("decoding rerank response: %w", err)
	}

	if len(results) != len(texts) {
		return nil, fmt.Errorf("rerank API returned %d scores for %d texts", len(results), len(texts))
	}

	scores := make([]float64, len(texts))

	for _, r := range results {
		if r.Index < 0 || r.Index >= len(scores) {
			return nil, fmt.Errorf("rerank API returned out-of-range index %d", r.Index)
		}

		scores[r.Index] = r.Score
	}

	return scores, nil
}
