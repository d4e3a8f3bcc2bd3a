package litellm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clipforge/clipforge/internal/port/llm"
)

// Generate returns free text for the given prompt, read through the response
// cache when one is attached.
func (c *Client) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if data, ok := c.cacheGet(ctx, "gen", prompt, systemPrompt); ok {
		return string(data), nil
	}

	resp, err := c.complete(ctx, prompt, systemPrompt)
	if err != nil {
		return "", err
	}

	c.cacheSet(ctx, "gen", prompt, systemPrompt, []byte(resp.Content))
	return resp.Content, nil
}

// GenerateJSON returns the JSON object embedded in the model's reply. Models
// routinely wrap JSON in prose or markdown fences; both are tolerated. An
// empty or "null" reply yields (nil, nil), a valid no-answer signal.
func (c *Client) GenerateJSON(ctx context.Context, prompt, systemPrompt string) (json.RawMessage, error) {
	if data, ok := c.cacheGet(ctx, "json", prompt, systemPrompt); ok {
		return json.RawMessage(data), nil
	}

	resp, err := c.complete(ctx, prompt, systemPrompt)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Content)
	if content == "" || content == "null" {
		return nil, nil
	}

	extracted := extractJSON(content)
	if !json.Valid([]byte(extracted)) {
		return nil, fmt.Errorf("model reply is not valid JSON: %s", truncate(content, 200))
	}

	c.cacheSet(ctx, "json", prompt, systemPrompt, []byte(extracted))
	return json.RawMessage(extracted), nil
}

// GenerateWithFileAccess runs the model through the agent gateway colocated
// with the proxy, giving it direct access to project files.
func (c *Client) GenerateWithFileAccess(ctx context.Context, prompt, systemPrompt string, allowWrites bool) (*llm.FileAccessResult, error) {
	body, err := json.Marshal(map[string]any{
		"model":         c.model,
		"prompt":        prompt,
		"system_prompt": systemPrompt,
		"allow_writes":  allowWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal agent request: %w", err)
	}

	data, err := c.doRequest(ctx, "POST", "/agent/run", body)
	if err != nil {
		return nil, fmt.Errorf("agent run: %w", err)
	}

	var result llm.FileAccessResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal agent result: %w", err)
	}
	return &result, nil
}

func (c *Client) complete(ctx context.Context, prompt, systemPrompt string) (*ChatCompletionResponse, error) {
	messages := make([]ChatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: prompt})

	return c.ChatCompletion(ctx, ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
}

func (c *Client) cacheGet(ctx context.Context, kind, prompt, systemPrompt string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, found, err := c.cache.Get(ctx, c.cacheKey(kind, prompt, systemPrompt))
	if err != nil {
		slog.Debug("llm cache get failed", "error", err)
		return nil, false
	}
	return data, found
}

func (c *Client) cacheSet(ctx context.Context, kind, prompt, systemPrompt string, data []byte) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, c.cacheKey(kind, prompt, systemPrompt), data, c.cacheTTL); err != nil {
		slog.Debug("llm cache set failed", "error", err)
	}
}

func (c *Client) cacheKey(kind, prompt, systemPrompt string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(systemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return "llm:" + hex.EncodeToString(h.Sum(nil))
}

// extractJSON pulls a JSON object out of a string that may contain markdown
// fences or surrounding prose.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		return strings.TrimSpace(s)
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		return strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}

	return s
}
