package litellm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clipforge/clipforge/internal/adapter/litellm"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/resilience"
)

func chatServer(t *testing.T, content string, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newClient(url string) *litellm.Client {
	return litellm.NewClient(config.LiteLLM{
		URL:       url,
		Model:     "openai/gpt-4o-mini",
		MaxTokens: 512,
		Timeout:   5 * time.Second,
	})
}

func TestGenerate_ReturnsContent(t *testing.T) {
	srv := chatServer(t, "a calmer, slower opening", nil)
	defer srv.Close()

	got, err := newClient(srv.URL).Generate(context.Background(), "rewrite the intro", "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "a calmer, slower opening" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestGenerateJSON_StripsMarkdownFences(t *testing.T) {
	srv := chatServer(t, "Here you go:\n```json\n{\"intent\": \"visual_cue\"}\n```", nil)
	defer srv.Close()

	raw, err := newClient(srv.URL).GenerateJSON(context.Background(), "classify", "")
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.Intent != "visual_cue" {
		t.Fatalf("unexpected intent: %q", out.Intent)
	}
}

func TestGenerateJSON_ExtractsObjectFromProse(t *testing.T) {
	srv := chatServer(t, `The classification is {"intent": "timing"} as requested.`, nil)
	defer srv.Close()

	raw, err := newClient(srv.URL).GenerateJSON(context.Background(), "classify", "")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"intent": "timing"}` {
		t.Fatalf("unexpected extraction: %s", raw)
	}
}

func TestGenerateJSON_EmptyReplyIsNoAnswer(t *testing.T) {
	srv := chatServer(t, "", nil)
	defer srv.Close()

	raw, err := newClient(srv.URL).GenerateJSON(context.Background(), "classify", "")
	if err != nil {
		t.Fatal(err)
	}
	if raw != nil {
		t.Fatalf("expected nil raw message, got %s", raw)
	}
}

func TestGenerate_BreakerShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	c.SetBreaker(resilience.NewBreaker(1, time.Minute))

	if _, err := c.Generate(context.Background(), "p", ""); err == nil {
		t.Fatal("expected upstream error")
	}
	_, err := c.Generate(context.Background(), "p", "")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

type mapCache struct {
	m map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.m[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	delete(c.m, key)
	return nil
}

func TestGenerate_CacheAvoidsSecondCall(t *testing.T) {
	var calls atomic.Int64
	srv := chatServer(t, "cached answer", &calls)
	defer srv.Close()

	c := newClient(srv.URL)
	c.SetCache(&mapCache{m: make(map[string][]byte)}, time.Minute)

	ctx := context.Background()
	for range 2 {
		got, err := c.Generate(ctx, "same prompt", "same system")
		if err != nil {
			t.Fatal(err)
		}
		if got != "cached answer" {
			t.Fatalf("unexpected content: %q", got)
		}
	}

	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls.Load())
	}
}

func TestGenerateWithFileAccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agent/run" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["allow_writes"] != true {
			t.Errorf("expected allow_writes=true, got %v", req["allow_writes"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":        true,
			"response":       "fixed overlap in scene 2",
			"modified_files": []string{"scenes/scene2_discovery.tsx"},
		})
	}))
	defer srv.Close()

	res, err := newClient(srv.URL).GenerateWithFileAccess(context.Background(), "fix it", "", true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || len(res.ModifiedFiles) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
