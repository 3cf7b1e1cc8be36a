package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/loomwork/transcribe-core/pkg/apperror"
)

// Client is a thin HTTP client for the embedding collaborator service. It
// never imports a model SDK directly (spec §2: concrete ML implementations
// are out of scope), mirroring the teacher's genai client's shape without
// its vendor-specific request/response types.
type Client struct {
	httpClient *http.Client
	endpoint   string
	modelID    string
}

// NewClient builds a Client pointed at the embedding service's base URL.
func NewClient(endpoint, modelID string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		modelID:    modelID,
	}
}

type embedRequest struct {
	Texts     []string `json:"texts"`
	Dimension int      `json:"dimension"`
	ModelID   string   `json:"model_id"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends one batch request and validates that every returned vector has
// the expected dimension before handing results back to the caller.
func (c *Client) Embed(ctx context.Context, texts []string, dimension int) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts, Dimension: dimension, ModelID: c.modelID})
	if err != nil {
		return nil, apperror.NewInternal("failed to marshal embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, apperror.NewInternal("failed to build embed request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed request: unexpected status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed response: expected %d vectors, got %d", len(texts), len(out.Embeddings))
	}
	for i, v := range out.Embeddings {
		if len(v) != dimension {
			return nil, fmt.Errorf("embed response: vector %d has dimension %d, want %d", i, len(v), dimension)
		}
	}
	return out.Embeddings, nil
}
