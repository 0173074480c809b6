package embedding

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Transient Ollama failures are retried with linear backoff: attempt
// delays run 0s, 2s, 4s.
const (
	ollamaMaxRetries = 3
	ollamaRetryBase  = 2 * time.Second
)

// ollamaOverflowLen is the input length above which a 500 from Ollama
// is read as context overflow rather than a transient server fault.
const ollamaOverflowLen = 3000

// OllamaProvider generates embeddings via a local Ollama instance.
// The base URL must point to localhost.
type OllamaProvider struct {
	httpClient *http.Client
	baseURL    string
	model      string
	dims       int
}

func newOllamaProvider(cfg ProviderConfig) (*OllamaProvider, error) {
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if err := validateLocalhostOnly(baseURL); err != nil {
		return nil, err
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = DefaultDims("ollama", model)
	}

	return &OllamaProvider{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		model:      model,
		dims:       dims,
	}, nil
}

func (p *OllamaProvider) Name() string    { return "ollama" }
func (p *OllamaProvider) Model() string   { return p.model }
func (p *OllamaProvider) Dimensions() int { return p.dims }

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// httpError carries the response status so callers can separate client
// errors (4xx, don't retry) from server/network errors (retry).
// StatusCode 0 means the request never reached the server.
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("ollama returned %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) isRetryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// ollamaPrompt prefixes the text for asymmetric embedding models:
// nomic-embed-text wants search_document/search_query task prefixes.
func ollamaPrompt(text, purpose string) string {
	if purpose == "query" {
		return "search_query: " + text
	}
	return "search_document: " + text
}

// GetEmbedding returns an embedding vector for the text. Retries 5xx
// and network errors; a 500 on long input is treated as context
// overflow and the text is halved instead of retried.
func (p *OllamaProvider) GetEmbedding(text string, purpose string) ([]float32, error) {
	prompt := ollamaPrompt(text, purpose)

	var lastErr error
	for attempt := 0; attempt < ollamaMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * ollamaRetryBase
			fmt.Fprintf(os.Stderr, "markvault: ollama request failed, retrying in %s... (attempt %d/%d)\n",
				delay, attempt+1, ollamaMaxRetries)
			time.Sleep(delay)
		}

		vec, err := p.embedOnce(prompt)
		if err == nil {
			return vec, nil
		}

		var he *httpError
		if errors.As(err, &he) {
			// Halving recovers overflowed input; retrying the same
			// request would fail the same way.
			if he.StatusCode == http.StatusInternalServerError && len(text) > ollamaOverflowLen {
				return p.GetEmbedding(text[:len(text)/2], purpose)
			}
			if !he.isRetryable() {
				return nil, err
			}
		}
		lastErr = err
	}
	return nil, fmt.Errorf("ollama request failed after %d attempts: %w", ollamaMaxRetries, lastErr)
}

// embedOnce performs a single /api/embeddings call.
func (p *OllamaProvider) embedOnce(prompt string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbeddingRequest{Model: p.model, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.httpClient.Post(p.baseURL+"/api/embeddings", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, &httpError{Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &httpError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return result.Embedding, nil
}

func (p *OllamaProvider) GetDocumentEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "document")
}

func (p *OllamaProvider) GetQueryEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "query")
}

// validateLocalhostOnly returns an error if the URL is not localhost.
func validateLocalhostOnly(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid Ollama URL: %w", err)
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" && host != "::1" {
		return fmt.Errorf("Ollama URL must point to localhost for security, got: %s", host)
	}
	return nil
}
