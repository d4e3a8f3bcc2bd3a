// Package inspector implements the visual inspector port, either against an
// external scene-refinement service or through an LLM agent with file access.
package inspector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/port/inspector"
	"github.com/clipforge/clipforge/internal/resilience"
)

// ServiceClient calls an external visual-inspector service over HTTP.
type ServiceClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewServiceClient creates a client for the configured inspector service.
func NewServiceClient(cfg config.Inspector) *ServiceClient {
	return &ServiceClient{
		baseURL: cfg.URL,
		// Refinement renders frames and may run model calls on the far side.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// SetBreaker attaches a circuit breaker to refinement calls.
func (c *ServiceClient) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// RefineScene asks the service to inspect and refine the scene at the given
// 0-based storyboard index.
func (c *ServiceClient) RefineScene(ctx context.Context, sceneIndex int) (*inspector.RefineResult, error) {
	body, err := json.Marshal(map[string]any{"scene_index": sceneIndex})
	if err != nil {
		return nil, fmt.Errorf("marshal refine request: %w", err)
	}

	var result inspector.RefineResult
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/scenes/refine", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("inspector API error %d: %s", resp.StatusCode, truncate(string(data), 200))
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("unmarshal refine result: %w", err)
		}
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return &result, nil
	}
	if err := call(); err != nil {
		return nil, err
	}
	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
