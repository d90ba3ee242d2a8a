// Package embedding talks to the embedding provider behind a
// config.ServiceConfig: POST {baseUrl}/v1/embeddings with {model, input},
// bearer auth (spec.md §6).
package embedding

import (
	"github.com/netdocs/ragserver/internal/clients/base"
	"github.com/netdocs/ragserver/internal/config"
)

const ServiceName = "embedding"

// Embedder is what the queue and the searcher depend on; fakeable in tests.
type Embedder interface {
	CreateEmbedding(req Request) (*Response, error)
	CreateEmbeddingWithDefaults(model, text string) (*Response, error)
	CreateBatchEmbedding(model string, texts []string) (*Response, error)
}

// Client is the provider-backed Embedder. Timeout is base.EmbeddingTimeout
// (60s) per spec.md §5 — embedding batches carry real payloads and can't
// share the short-call budget chat/rerank use.
type Client struct {
	httpClient *base.HTTPClient
}

var _ Embedder = (*Client)(nil)

func NewClient(cfg config.ServiceConfig) *Client {
	return &Client{httpClient: base.NewHTTPClient(ServiceName, cfg, base.EmbeddingTimeout)}
}

// Request is the embeddings wire request. Input may be a single string or
// a []string for batch calls.
type Request struct {
	Model          string      `json:"model"`
	Input          interface{} `json:"input"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
	Dimensions     int         `json:"dimensions,omitempty"`
}

// Data is one embedding result within the "data" array shape.
type Data struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response accepts either documented wire shape from spec.md §6: the
// `{data:[{embedding:[…]}]}` array form, or a bare `{embedding:[…]}` from
// providers that skip the wrapper for single-input calls.
type Response struct {
	Object    string    `json:"object"`
	Model     string    `json:"model"`
	Data      []Data    `json:"data"`
	Embedding []float64 `json:"embedding,omitempty"`
	Usage     Usage     `json:"usage"`
}

// First returns the response's leading embedding vector regardless of
// which wire shape the provider used, and false if neither is present.
func (r *Response) First() ([]float64, bool) {
	if len(r.Data) > 0 && len(r.Data[0].Embedding) > 0 {
		return r.Data[0].Embedding, true
	}
	if len(r.Embedding) > 0 {
		return r.Embedding, true
	}
	return nil, false
}

func (c *Client) CreateEmbedding(req Request) (*Response, error) {
	var result Response
	if err := c.httpClient.Post("/embeddings", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateEmbeddingWithDefaults(model, text string) (*Response, error) {
	return c.CreateEmbedding(Request{Model: model, Input: text, EncodingFormat: "float"})
}

func (c *Client) CreateBatchEmbedding(model string, texts []string) (*Response, error) {
	return c.CreateEmbedding(Request{Model: model, Input: texts, EncodingFormat: "float"})
}

// Supported embedding models, matching the providers the default config
// targets (internal/config's siliconflow defaults).
const (
	ModelBGELargeZhV15 = "BAAI/bge-large-zh-v1.5"
	ModelBGELargeEnV15 = "BAAI/bge-large-en-v1.5"
	ModelBGEM3         = "BAAI/bge-m3"
	ModelProBGEM3      = "Pro/BAAI/bge-m3"

	ModelBCEEmbeddingBaseV1 = "netease-youdao/bce-embedding-base_v1"

	ModelQwen3Embedding8B  = "Qwen/Qwen3-Embedding-8B"
	ModelQwen3Embedding4B  = "Qwen/Qwen3-Embedding-4B"
	ModelQwen3Embedding06B = "Qwen/Qwen3-Embedding-0.6B"
)
