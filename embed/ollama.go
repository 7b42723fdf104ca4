package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const ollamaTimeout = 30 * time.Second

// Circuit breaker configuration.
const (
	cbFailureThreshold = 5
	cbCooldown         = 30 * time.Second
)

// Circuit breaker states.
const (
	cbClosed   = iota // Normal operation.
	cbOpen            // Fail fast.
	cbHalfOpen        // Probe with one request.
)

// ErrCircuitOpen is returned when the circuit breaker is open and
// requests are rejected without calling the embedding service.
var ErrCircuitOpen = errors.New("embedding circuit breaker is open")

// Ollama generates embeddings via the Ollama embed API. It uses a
// circuit breaker to fail fast while the service is down.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client

	mu              sync.Mutex
	cbState         int
	cbFailures      int
	cbLastFailureAt time.Time
}

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllama creates an Ollama embedder for the given endpoint and model.
func NewOllama(baseURL, model string) *Ollama {
	return &Ollama{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: ollamaTimeout},
		cbState: cbClosed,
	}
}

// Embed returns one vector per input text, in input order.
func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := o.cbAllow(); err != nil {
		return nil, err
	}

	result, err := o.doEmbed(ctx, texts)
	if err != nil {
		o.cbRecordFailure()

		return nil, err
	}

	o.cbRecordSuccess()

	return result, nil
}

func (o *Ollama) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: o.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embedding request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama embed API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain body so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck // best-effort drain before close.
		return nil, fmt.Errorf("ollama embed API returned status %d", resp.StatusCode)
	}

	var result ollamaResponse

	limited := io.LimitReader(resp.Body, 10<<20) // 10 MB
	if err := json.NewDecoder(limited).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	return result.Embeddings, nil
}

// cbAllow checks whether the circuit breaker permits a request.
// In closed state, all requests pass. In open state, requests are
// rejected until the cooldown expires, at which point we transition to
// half-open. In half-open state, one probe request is allowed.
func (o *Ollama) cbAllow() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.cbState {
	case cbClosed:
		return nil
	case cbOpen:
		if time.Since(o.cbLastFailureAt) >= cbCooldown {
			o.cbState = cbHalfOpen

			return nil
		}

		return ErrCircuitOpen
	case cbHalfOpen:
		// Already probing, reject additional requests.
		return ErrCircuitOpen
	}

	return nil
}

// cbRecordSuccess records a successful call. In half-open state this
// closes the circuit breaker, restoring normal operation.
func (o *Ollama) cbRecordSuccess() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cbFailures = 0
	o.cbState = cbClosed
}

// cbRecordFailure records a failed call. After reaching the failure
// threshold the circuit breaker transitions to open state.
func (o *Ollama) cbRecordFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cbFailures++
	o.cbLastFailureAt = time.Now()

	if o.cbFailures >= cbFailureThreshold || o.cbState == cbHalfOpen {
		o.cbState = cbOpen
	}
}
