package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
	"github.com/vivon-labs/vivon/sui-assistant/internal/storage"
)

// NoDocumentsFound is the tool output when a search returns nothing.
const NoDocumentsFound = "No documents found matching the query."

// Document is a retrieved chunk with its provenance and similarity score.
type Document struct {
	Content    string  `json:"content"`
	Source     string  `json:"source"`
	Title      string  `json:"title"`
	Section    string  `json:"section"`
	Category   string  `json:"category"`
	Collection string  `json:"collection"`
	Score      float64 `json:"score"`
}

// Store is the similarity search backend.
type Store interface {
	QuerySimilar(ctx context.Context, queryEmb []float32, topK int, collection string) ([]storage.Document, error)
}

// QueryEmbedder turns a query into a vector.
type QueryEmbedder interface {
	QueryEmbedding(ctx context.Context, query string) ([]float32, error)
}

// Config describes one retriever tool.
type Config struct {
	Name        string
	Description string
	K           int
	// Collection restricts the search; empty searches every collection.
	Collection string
}

// SuiDocs searches all Sui and VIVON documentation.
var SuiDocs = Config{
	Name: "search_sui_documentation",
	Description: `Search comprehensive Sui blockchain documentation including:
- Sui blockchain architecture and concepts
- Move programming language reference
- Smart contract development guides
- VIVON platform features and APIs
- Code examples and best practices
- Token economics and DeFi protocols
- NFT development on Sui
- dApp development tutorials
Use this tool to find technical information, code examples, and implementation guides.`,
	K: 6,
}

// VivonPlatform searches only the VIVON platform collection.
var VivonPlatform = Config{
	Name: "search_vivon_platform",
	Description: `Search VIVON platform-specific documentation including:
- Bounty creation and management
- Challenge participation guides
- VIVON token usage and economics
- NFT minting and trading
- Platform API documentation
- User guides and tutorials
Use this tool for platform-specific features and functionality.`,
	K:          4,
	Collection: "vivon_docs",
}

const querySchema = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "The search query"}
	},
	"required": ["query"]
}`

var querySchemaLoader = gojsonschema.NewStringLoader(querySchema)

// ErrInvalidToolArgs is returned when a tool call does not match the query schema.
var ErrInvalidToolArgs = errors.New("invalid retriever tool arguments")

// Retriever exposes a vector search as an LLM tool.
type Retriever struct {
	cfg      Config
	store    Store
	embedder QueryEmbedder
	cache    Cache
	logger   zerolog.Logger
}

// New creates a retriever. cache may be nil.
func New(cfg Config, store Store, embedder QueryEmbedder, cache Cache, logger zerolog.Logger) *Retriever {
	if cfg.K <= 0 {
		cfg.K = 4
	}
	return &Retriever{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		cache:    cache,
		logger:   logger.With().Str("retriever", cfg.Name).Logger(),
	}
}

// Name returns the tool name.
func (r *Retriever) Name() string {
	return r.cfg.Name
}

// Tool returns the function declaration bound to the agent.
func (r *Retriever) Tool() llm.Tool {
	return llm.NewFunctionTool(r.cfg.Name, r.cfg.Description, json.RawMessage(querySchema))
}

// Search returns the top-k documents for query, most similar first.
func (r *Retriever) Search(ctx context.Context, query string) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidToolArgs)
	}

	key := CacheKey(r.cfg.Collection, r.cfg.K, query)
	if r.cache != nil {
		docs, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn().Err(err).Msg("retrieval cache read failed")
		} else if ok {
			return docs, nil
		}
	}

	emb, err := r.embedder.QueryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	rows, err := r.store.QuerySimilar(ctx, emb, r.cfg.K, r.cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document{
			Content:    row.Content,
			Source:     row.FilePath,
			Title:      row.Title,
			Section:    row.Section,
			Category:   row.Category,
			Collection: row.Collection,
			Score:      1 - row.Distance,
		})
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, docs); err != nil {
			r.logger.Warn().Err(err).Msg("retrieval cache write failed")
		}
	}
	r.logger.Debug().Str("query", query).Int("results", len(docs)).Msg("retrieved documents")
	return docs, nil
}

// Invoke runs the tool with JSON arguments and returns the formatted result.
func (r *Retriever) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := ParseQuery(args)
	if err != nil {
		return "", err
	}
	docs, err := r.Search(ctx, query)
	if err != nil {
		return "", err
	}
	return Format(docs), nil
}

// ParseQuery validates tool arguments and extracts the query.
func ParseQuery(args json.RawMessage) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: no arguments", ErrInvalidToolArgs)
	}
	result, err := gojsonschema.Validate(querySchemaLoader, gojsonschema.NewBytesLoader(args))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToolArgs, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return "", fmt.Errorf("%w: %s", ErrInvalidToolArgs, strings.Join(msgs, "; "))
	}

	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToolArgs, err)
	}
	return in.Query, nil
}

// Format joins document contents with blank lines, in rank order.
func Format(docs []Document) string {
	if len(docs) == 0 {
		return NoDocumentsFound
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n")
}
