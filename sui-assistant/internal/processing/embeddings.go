package processing

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

	"golang.org/x/sync/errgroup"

	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// OllamaEmbeddingDim is the dimension of nomic-embed-text vectors.
const OllamaEmbeddingDim = 768

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Provider    string
	Endpoint    string
	APIKey      string
	Model       string
	Dims        int
	Concurrency int
	Timeout     time.Duration
}

// Embedder produces vectors for chunks and queries.
type Embedder struct {
	cfg        EmbedderConfig
	client     *llm.Client
	httpClient *http.Client
}

// NewEmbedder creates an embedder for the configured provider.
func NewEmbedder(cfg EmbedderConfig) *Embedder {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	switch cfg.Provider {
	case ProviderOllama:
		if cfg.Endpoint == "" {
			cfg.Endpoint = "http://localhost:11434"
		}
		if cfg.Model == "" {
			cfg.Model = "nomic-embed-text"
		}
	default:
		if cfg.Endpoint == "" {
			cfg.Endpoint = "https://api.openai.com"
		}
		if cfg.Model == "" {
			cfg.Model = "text-embedding-3-small"
		}
	}

	return &Embedder{
		cfg:        cfg,
		client:     llm.NewClient(cfg.Endpoint, cfg.APIKey, cfg.Timeout),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Dims returns the expected embedding dimension, or 0 when unchecked.
func (e *Embedder) Dims() int {
	return e.cfg.Dims
}

// EmbedChunks produces one embedding per chunk, in order.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, errors.New("no chunks")
	}

	var out [][]float32
	if e.cfg.Provider == ProviderOllama {
		out = make([][]float32, len(chunks))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.Concurrency)
		for i, chunk := range chunks {
			g.Go(func() error {
				emb, err := e.ollamaEmbedding(gctx, chunk)
				if err != nil {
					return fmt.Errorf("failed embedding chunk %d: %w", i, err)
				}
				out[i] = emb
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		var err error
		out, err = e.client.CreateEmbeddings(ctx, e.cfg.Model, chunks)
		if err != nil {
			return nil, fmt.Errorf("failed embedding %d chunks: %w", len(chunks), err)
		}
	}

	for i, emb := range out {
		if err := e.checkDims(emb); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return out, nil
}

// QueryEmbedding produces an embedding for a query string.
func (e *Embedder) QueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty query")
	}
	embs, err := e.EmbedChunks(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embs[0], nil
}

func (e *Embedder) checkDims(emb []float32) error {
	if e.cfg.Dims > 0 && len(emb) != e.cfg.Dims {
		return fmt.Errorf("expected embedding dim %d, got %d", e.cfg.Dims, len(emb))
	}
	return nil
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// ollamaEmbedding calls the Ollama embeddings API.
func (e *Embedder) ollamaEmbedding(ctx context.Context, text string) ([]float32, error) {
	data, _ := json.Marshal(ollamaRequest{Model: e.cfg.Model, Prompt: text})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(e.cfg.Endpoint, "/")+"/api/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error: %s", string(bodyBytes))
	}

	var oResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return nil, fmt.Errorf("failed decode response: %w", err)
	}
	return oResp.Embedding, nil
}
