package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mygads/genovaai-server-sub000/internal/config"
	"github.com/mygads/genovaai-server-sub000/internal/domain/service"
)

func newOpenRouterTestServer(t *testing.T, cachedTokens int, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if err := json.Unmarshal(raw, capture); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "pong"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     100,
				"completion_tokens": 10,
				"prompt_tokens_details": map[string]any{
					"cached_tokens": cachedTokens,
				},
			},
		})
	}))
}

func newOpenRouterTestClient(baseURL string) *OpenRouterClient {
	return NewOpenRouterClient(&config.OpenRouterConfig{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		DefaultModel: "openai/gpt-4o-mini",
		Timeout:      5 * time.Second,
	})
}

func TestOpenRouterRequestsCacheAccountingWhenPreferred(t *testing.T) {
	var body map[string]any
	srv := newOpenRouterTestServer(t, 96, &body)
	defer srv.Close()

	client := newOpenRouterTestClient(srv.URL)
	result, err := client.Generate(context.Background(), &service.GenerateRequest{
		Model:          "openai/gpt-4o-mini",
		SystemPrompt:   "sys",
		UserPrompt:     "ping",
		CachePreferred: true,
		CacheTTL:       5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	usage, ok := body["usage"].(map[string]any)
	if !ok || usage["include"] != true {
		t.Errorf("request usage options = %v, want include=true", body["usage"])
	}
	if !result.Cached {
		t.Errorf("cached tokens in usage must mark the result as cached")
	}
	if result.TokensPrompt != 100 || result.TokensCompletion != 10 {
		t.Errorf("tokens = %d/%d, want 100/10", result.TokensPrompt, result.TokensCompletion)
	}
}

func TestOpenRouterOmitsCacheAccountingByDefault(t *testing.T) {
	var body map[string]any
	srv := newOpenRouterTestServer(t, 0, &body)
	defer srv.Close()

	client := newOpenRouterTestClient(srv.URL)
	result, err := client.Generate(context.Background(), &service.GenerateRequest{
		Model:      "openai/gpt-4o-mini",
		UserPrompt: "ping",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, present := body["usage"]; present {
		t.Errorf("usage options must be omitted without a cache preference")
	}
	if result.Cached {
		t.Errorf("no cached tokens, result must not be cached")
	}
}
