package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type stubProvider struct {
	name  string
	calls atomic.Int32
	fn    func(n int32) (*Response, error)
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(_ context.Context, _ *Request) (*Response, error) {
	return s.fn(s.calls.Add(1))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Default(); !errors.Is(err, ErrNoDefaultProvider) {
		t.Errorf("Default() error = %v; want ErrNoDefaultProvider", err)
	}

	r.Register("ollama", &stubProvider{name: "ollama"})
	r.Register("claude", &stubProvider{name: "claude"})

	p, err := r.Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if p.Name() != "claude" {
		t.Errorf("Default() = %s; want claude (first by name)", p.Name())
	}

	if err := r.SetDefault("ollama"); err != nil {
		t.Fatalf("SetDefault() error = %v", err)
	}
	p, _ = r.Default()
	if p.Name() != "ollama" {
		t.Errorf("Default() = %s; want ollama", p.Name())
	}

	if err := r.SetDefault("gpt"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("SetDefault(gpt) error = %v; want ErrProviderNotFound", err)
	}
	if _, err := r.Get("gpt"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("Get(gpt) error = %v; want ErrProviderNotFound", err)
	}

	names := r.List()
	if len(names) != 2 || names[0] != "claude" || names[1] != "ollama" {
		t.Errorf("List() = %v; want [claude ollama]", names)
	}
}

func TestClaudeProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s; want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q; want test-key", r.Header.Get("x-api-key"))
		}

		var req claudeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.System != "be brief" {
			t.Errorf("System = %q; want be brief", req.System)
		}
		if len(req.Messages) != 1 {
			t.Errorf("Messages = %d; want 1", len(req.Messages))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"Check the cookies."}],"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":4}}`))
	}))
	defer srv.Close()

	p := NewClaudeProvider(ClaudeConfig{APIKey: "test-key", BaseURL: srv.URL})
	resp, err := p.Generate(context.Background(), &Request{
		Messages: []Message{{Role: RoleSystem, Content: "be brief"}, {Role: RoleUser, Content: "hint?"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Check the cookies." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.OutputTokens != 4 {
		t.Errorf("OutputTokens = %d; want 4", resp.Usage.OutputTokens)
	}
}

func TestClaudeProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewClaudeProvider(ClaudeConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Generate(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Generate() error = %v; want *StatusError", err)
	}
	if se.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d; want 503", se.Code)
	}
}

func TestOllamaProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s; want /api/chat", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("Stream = true; want false")
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("Messages = %+v; want system + user", req.Messages)
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"Try LSB analysis."},"done":true,"done_reason":"stop","eval_count":5,"prompt_eval_count":20}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL})
	resp, err := p.Generate(context.Background(), &Request{
		System:   "be brief",
		Messages: []Message{{Role: RoleUser, Content: "hint?"}},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "Try LSB analysis." {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 20 {
		t.Errorf("InputTokens = %d; want 20", resp.Usage.InputTokens)
	}
}

func TestResilientProvider_RetriesTransientStatus(t *testing.T) {
	stub := &stubProvider{name: "stub", fn: func(n int32) (*Response, error) {
		if n < 3 {
			return nil, &StatusError{Provider: "stub", Code: http.StatusBadGateway}
		}
		return &Response{Content: "ok"}, nil
	}}

	cfg := DefaultResilientConfig()
	cfg.EnableRateLimit = false
	cfg.RetryDelay = time.Millisecond
	rp := NewResilientProvider(stub, cfg)
	defer rp.Close()

	resp, err := rp.Generate(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q; want ok", resp.Content)
	}
	if got := stub.calls.Load(); got != 3 {
		t.Errorf("calls = %d; want 3", got)
	}
}

func TestResilientProvider_NoRetryOnClientError(t *testing.T) {
	stub := &stubProvider{name: "stub", fn: func(int32) (*Response, error) {
		return nil, &StatusError{Provider: "stub", Code: http.StatusBadRequest}
	}}

	cfg := DefaultResilientConfig()
	cfg.EnableRateLimit = false
	cfg.EnableCircuitBreaker = false
	cfg.RetryDelay = time.Millisecond
	rp := NewResilientProvider(stub, cfg)
	defer rp.Close()

	if _, err := rp.Generate(context.Background(), &Request{}); err == nil {
		t.Fatal("Generate() error = nil; want error")
	}
	if got := stub.calls.Load(); got != 1 {
		t.Errorf("calls = %d; want 1", got)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp: refused"), false},
		{&StatusError{Code: http.StatusTooManyRequests}, true},
		{&StatusError{Code: http.StatusGatewayTimeout}, true},
		{&StatusError{Code: http.StatusUnauthorized}, false},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.err); got != tt.want {
			t.Errorf("isRetryable(%v) = %v; want %v", tt.err, got, tt.want)
		}
	}
}
