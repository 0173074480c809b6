// Package embedding turns text into vectors for the search index.
//
// Supported providers:
//   - ollama (default): local embeddings, no API keys, fully private.
//   - openai: OpenAI text-embedding-3-small/large. Requires an API key.
//   - openai-compatible: any server exposing OpenAI-style /v1/embeddings
//     (llama.cpp, vLLM, LM Studio). API key optional.
//   - none: keyword-only mode, no vectors are produced at all.
package embedding

import (
	"errors"
	"fmt"
	"math"
)

// ErrKeywordOnly is returned by NewProvider when the configured provider
// is "none". Callers treat it as a signal to index without vectors, not
// as a failure.
var ErrKeywordOnly = errors.New("embedding provider is \"none\" (keyword-only mode)")

// Provider generates embedding vectors from text. All vectors within a
// single index must share one dimensionality; switching providers or
// models requires a force reindex.
type Provider interface {
	// GetEmbedding returns a vector for the text. Purpose is "document"
	// for indexing or "query" for search; providers with asymmetric
	// models use it to pick the prompt prefix.
	GetEmbedding(text string, purpose string) ([]float32, error)

	// GetDocumentEmbedding returns an embedding optimized for storage.
	GetDocumentEmbedding(text string) ([]float32, error)

	// GetQueryEmbedding returns an embedding optimized for queries.
	GetQueryEmbedding(text string) ([]float32, error)

	// Name returns the provider identifier ("ollama", "openai").
	Name() string

	// Model returns the embedding model name.
	Model() string

	// Dimensions returns the embedding vector dimensionality.
	Dimensions() int
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	Provider   string // "ollama" (default), "openai", "openai-compatible", "none"
	Model      string // model name (provider-specific default if empty)
	APIKey     string // API key (required for cloud providers)
	BaseURL    string // base URL (provider-specific default if empty)
	Dimensions int    // vector dimensions (0 = provider default)
}

// NewProvider creates an embedding provider from the given config.
// Returns ErrKeywordOnly for the "none" provider.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "ollama":
		return newOllamaProvider(cfg)
	case "openai", "openai-compatible":
		return newOpenAIProvider(cfg)
	case "none":
		return nil, ErrKeywordOnly
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q (supported: ollama, openai, openai-compatible, none)", cfg.Provider)
	}
}

// DefaultDims returns the default vector width for a provider/model
// pair. It is the single source of truth for model dimensions: the
// providers consult it when no explicit dimension is configured, and
// the config layer uses it to size the vector table before any
// provider exists.
func DefaultDims(provider, model string) int {
	switch provider {
	case "openai", "openai-compatible":
		switch model {
		case "text-embedding-3-large":
			return 3072
		default: // text-embedding-3-small, text-embedding-ada-002
			return 1536
		}
	default: // "ollama" or ""
		switch model {
		case "mxbai-embed-large", "snowflake-arctic-embed", "bge-m3":
			return 1024
		case "all-minilm":
			return 384
		default: // nomic-embed-text and friends
			return 768
		}
	}
}

// validateEmbedding checks that a returned vector has the expected
// width and is not all zeros (which indicates a provider error).
func validateEmbedding(vec []float32, expectedDims int) error {
	if expectedDims > 0 && len(vec) != expectedDims {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", expectedDims, len(vec))
	}
	for _, v := range vec {
		if math.Float32bits(v) != 0 {
			return nil
		}
	}
	return fmt.Errorf("embedding is all zeros (provider returned invalid vector)")
}
