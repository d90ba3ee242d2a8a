// Package rerank talks to the optional query-time rerank provider behind
// a config.ServiceConfig: POST {baseUrl}/v1/rerank with
// {model, query, documents:[…]}; response {data:[{index, relevance_score}]}
// (spec.md §6).
package rerank

import (
	"github.com/netdocs/ragserver/internal/clients/base"
	"github.com/netdocs/ragserver/internal/config"
)

const (
	ServiceName      = "rerank"
	MaxOverlapTokens = 80
)

// Reranker is what the hybrid searcher's optional rerank pass depends on;
// fakeable in tests. Rerank is a "short call" (base.ShortCallTimeout).
type Reranker interface {
	CreateRerank(req Request) (*Response, error)
	CreateRerankWithDefaults(model, query string, documents []string, topN int) (*Response, error)
}

type Client struct {
	httpClient *base.HTTPClient
}

var _ Reranker = (*Client)(nil)

func NewClient(cfg config.ServiceConfig) *Client {
	return &Client{httpClient: base.NewHTTPClient(ServiceName, cfg, base.ShortCallTimeout)}
}

type Request struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n,omitempty"`
	ReturnDocuments bool     `json:"return_documents,omitempty"`
}

// Result is one reranked document, keyed back to Request.Documents by
// Index.
type Result struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
	Document       *string `json:"document,omitempty"`
}

// Response mirrors the documented wire shape: the array key is "data",
// not "results".
type Response struct {
	Data []Result `json:"data"`
}

func (c *Client) CreateRerank(req Request) (*Response, error) {
	var result Response
	if err := c.httpClient.Post("/rerank", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateRerankWithDefaults(model, query string, documents []string, topN int) (*Response, error) {
	return c.CreateRerank(Request{
		Model:           model,
		Query:           query,
		Documents:       documents,
		TopN:            topN,
		ReturnDocuments: true,
	})
}

// Supported rerank models, matching the providers the default config
// targets (internal/config's siliconflow defaults).
const (
	ModelQwen3Reranker8B  = "Qwen/Qwen3-Reranker-8B"
	ModelQwen3Reranker4B  = "Qwen/Qwen3-Reranker-4B"
	ModelQwen3Reranker06B = "Qwen/Qwen3-Reranker-0.6B"

	ModelBGERerankerV2M3    = "BAAI/bge-reranker-v2-m3"
	ModelProBGERerankerV2M3 = "Pro/BAAI/bge-reranker-v2-m3"

	ModelBCERerankerBaseV1 = "netease-youdao/bce-reranker-base_v1"
)
