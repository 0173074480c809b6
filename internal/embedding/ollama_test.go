package embedding

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidateLocalhostOnly(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"localhost", "http://localhost:11434", false},
		{"loopback", "http://127.0.0.1:11434", false},
		{"ipv6", "http://[::1]:11434", false},
		{"remote host", "http://example.com:11434", true},
		{"remote IP", "http://192.168.1.100:11434", true},
		{"invalid URL", "://bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateLocalhostOnly(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateLocalhostOnly(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestNewProviderKeywordOnly(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "none"})
	if !errors.Is(err, ErrKeywordOnly) {
		t.Errorf("expected ErrKeywordOnly, got %v", err)
	}
}

func TestNewOllamaProviderDefaults(t *testing.T) {
	p, err := newOllamaProvider(ProviderConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Model() != "nomic-embed-text" {
		t.Errorf("default model = %q", p.Model())
	}
	if p.Dimensions() != 768 {
		t.Errorf("default dims = %d", p.Dimensions())
	}
}

func TestNewOllamaProviderRejectsRemote(t *testing.T) {
	if _, err := newOllamaProvider(ProviderConfig{BaseURL: "http://remote.example.com:11434"}); err == nil {
		t.Error("expected error for remote URL")
	}
}

func TestOllamaGetEmbedding(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Prompt
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: make([]float32, 768)})
	}))
	defer server.Close()

	p, err := newOllamaProvider(ProviderConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vec, err := p.GetQueryEmbedding("find my notes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 768 {
		t.Errorf("got %d dims", len(vec))
	}
	if gotPrompt != "search_query: find my notes" {
		t.Errorf("prompt = %q, want search_query prefix", gotPrompt)
	}
}

func TestOllamaGetEmbedding4xxNoRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	p, err := newOllamaProvider(ProviderConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := p.GetEmbedding("test", "query"); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt (no retry on 4xx), got %d", attempts)
	}
}

func TestOllamaGetEmbedding5xxRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: make([]float32, 768)})
	}))
	defer server.Close()

	p, err := newOllamaProvider(ProviderConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := p.GetEmbedding("test", "query"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestHTTPErrorIsRetryable(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{0, true}, {500, true}, {503, true},
		{400, false}, {404, false}, {401, false},
	}
	for _, tt := range tests {
		e := &httpError{StatusCode: tt.status}
		if e.isRetryable() != tt.retryable {
			t.Errorf("httpError{%d}.isRetryable() = %v, want %v", tt.status, e.isRetryable(), tt.retryable)
		}
	}
}

func TestDefaultDims(t *testing.T) {
	cases := []struct {
		provider, model string
		want            int
	}{
		{"ollama", "nomic-embed-text", 768},
		{"ollama", "mxbai-embed-large", 1024},
		{"ollama", "all-minilm", 384},
		{"", "", 768},
		{"openai", "text-embedding-3-small", 1536},
		{"openai", "text-embedding-3-large", 3072},
		{"openai-compatible", "unknown-model", 1536},
	}
	for _, c := range cases {
		if got := DefaultDims(c.provider, c.model); got != c.want {
			t.Errorf("DefaultDims(%q, %q) = %d, want %d", c.provider, c.model, got, c.want)
		}
	}
}

func TestValidateEmbedding(t *testing.T) {
	if err := validateEmbedding([]float32{0, 0, 0}, 3); err == nil {
		t.Error("all-zero vector accepted")
	}
	if err := validateEmbedding([]float32{0.1, 0.2}, 3); err == nil {
		t.Error("wrong-width vector accepted")
	}
	if err := validateEmbedding([]float32{0.1, 0.2, 0.3}, 3); err != nil {
		t.Errorf("valid vector rejected: %v", err)
	}
}
