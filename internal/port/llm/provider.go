// Package llm defines the port interface for language-model providers.
package llm

import (
	"context"
	"encoding/json"
)

// FileAccessResult is the outcome of a higher-trust generation call in which
// the model was allowed to read (and optionally write) project files.
type FileAccessResult struct {
	Success       bool     `json:"success"`
	Response      string   `json:"response"`
	ModifiedFiles []string `json:"modified_files"`
	ErrorMessage  string   `json:"error_message,omitempty"`
}

// Provider is the interface the pipeline consumes for all model calls.
type Provider interface {
	// Generate returns free text for the given prompt.
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)

	// GenerateJSON returns a JSON object parsed out of the model's reply,
	// tolerating prose and markdown fences around it. A (nil, nil) return is
	// a valid "no answer" signal, not an error.
	GenerateJSON(ctx context.Context, prompt, systemPrompt string) (json.RawMessage, error)

	// GenerateWithFileAccess runs the model with direct access to project
	// files, writing only when allowWrites is set.
	GenerateWithFileAccess(ctx context.Context, prompt, systemPrompt string, allowWrites bool) (*FileAccessResult, error)
}
