package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"siem-mcp/internal/siemerr"
)

const (
	DefaultJinaURL   = "https://api.jina.ai/v1/embeddings"
	DefaultJinaModel = "jina-embeddings-v4"

	taskQuery = "retrieval.query"
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// JinaEmbedder calls the Jina embeddings API.
type JinaEmbedder struct {
	URL    string
	Model  string
	APIKey string
	Client *http.Client
}

// NewJinaEmbedder creates an embedder with the default endpoint and model.
func NewJinaEmbedder(apiKey string, client *http.Client) *JinaEmbedder {
	return &JinaEmbedder{URL: DefaultJinaURL, Model: DefaultJinaModel, APIKey: apiKey, Client: client}
}

type jinaRequest struct {
	Model string   `json:"model"`
	Task  string   `json:"task"`
	Input []string `json:"input"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// Embed embeds text as a retrieval query.
func (j *JinaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(j.APIKey) == "" {
		return nil, siemerr.Config("missing Jina API key", nil)
	}

	body, err := json.Marshal(jinaRequest{Model: j.Model, Task: taskQuery, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.URL, bytes.NewReader(body))
	if err != nil {
		return nil, siemerr.Transport("create embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.APIKey)

	resp, err := j.Client.Do(req)
	if err != nil {
		return nil, siemerr.Transport("embedding request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, siemerr.Transport("read embedding response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, siemerr.Transport(fmt.Sprintf("embedding request returned status %d: %s", resp.StatusCode, string(raw)), nil)
	}

	var out jinaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, siemerr.Transport("decode embedding response", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, siemerr.Transport("embedding response has no vector", nil)
	}
	return out.Data[0].Embedding, nil
}
