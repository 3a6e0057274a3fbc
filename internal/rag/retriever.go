// Package rag retrieves guideline passages from an Upstash-compatible vector
// database so that triage decisions can be grounded in the published ICMR
// Standard Treatment Workflow text.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

const (
	// DefaultTopK is the number of passages fetched per query.
	DefaultTopK = 5

	// DefaultTimeout bounds a single retrieval round trip.
	DefaultTimeout = 10 * time.Second
)

// Retriever fetches guideline passages relevant to a query. Implementations
// must degrade gracefully: a retrieval outage yields an empty passage list,
// never an error that would block a triage decision.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) []models.Passage
}

// Opts holds retriever configuration.
type Opts struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Client  *http.Client
}

// Option configures a vector retriever.
type Option func(*Opts)

// WithTimeout overrides the per-query timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient substitutes the HTTP client, used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.Client = c }
}

// VectorRetriever queries an Upstash Vector REST endpoint. The index embeds
// raw text server-side, so queries are sent as plain data strings.
type VectorRetriever struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewVectorRetriever creates a retriever for the given REST endpoint and
// bearer token.
func NewVectorRetriever(baseURL, token string, opts ...Option) (*VectorRetriever, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("rag.NewVectorRetriever: base URL is required")
	}
	o := Opts{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	client := o.Client
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	}
	return &VectorRetriever{baseURL: o.BaseURL, token: o.Token, client: client}, nil
}

type queryRequest struct {
	Data            string `json:"data"`
	TopK            int    `json:"topK"`
	IncludeMetadata bool   `json:"includeMetadata"`
}

type queryResponse struct {
	Result []struct {
		ID       string  `json:"id"`
		Score    float64 `json:"score"`
		Metadata struct {
			Text   string `json:"text"`
			Source string `json:"source"`
		} `json:"metadata"`
	} `json:"result"`
}

// Retrieve returns up to topK passages ranked by similarity to the query.
// Any failure is logged and surfaces as an empty list.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, topK int) []models.Passage {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	body, err := json.Marshal(queryRequest{Data: query, TopK: topK, IncludeMetadata: true})
	if err != nil {
		slog.Error("VectorRetriever.Retrieve: failed to encode query", "error", err)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		slog.Error("VectorRetriever.Retrieve: failed to build request", "error", err)
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Warn("VectorRetriever.Retrieve: vector query failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("VectorRetriever.Retrieve: unexpected status from vector index", "status", resp.StatusCode)
		return nil
	}

	var parsed queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		slog.Warn("VectorRetriever.Retrieve: malformed vector response", "error", err)
		return nil
	}

	passages := make([]models.Passage, 0, len(parsed.Result))
	for _, hit := range parsed.Result {
		if strings.TrimSpace(hit.Metadata.Text) == "" {
			continue
		}
		passages = append(passages, models.Passage{
			ID:     hit.ID,
			Score:  hit.Score,
			Text:   hit.Metadata.Text,
			Source: hit.Metadata.Source,
		})
	}
	slog.Debug("VectorRetriever.Retrieve: retrieved passages", "query_len", len(query), "count", len(passages))
	return passages
}

// NoopRetriever always returns no passages. It keeps the pipeline functional
// when no vector index is configured.
type NoopRetriever struct{}

// Retrieve implements Retriever.
func (NoopRetriever) Retrieve(ctx context.Context, query string, topK int) []models.Passage {
	return nil
}
