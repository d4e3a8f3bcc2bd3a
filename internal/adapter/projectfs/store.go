// Package projectfs implements the project document store on the local
// filesystem under a project root directory.
package projectfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/clipforge/clipforge/internal/domain"
	"github.com/clipforge/clipforge/internal/domain/script"
	"github.com/clipforge/clipforge/internal/port/projectstore"
)

// Store reads and writes the script and narration documents under root.
// Saves are atomic: a temp file in the same directory is renamed over the
// target, so a crash mid-write never leaves a truncated document.
type Store struct {
	root string
}

// NewStore creates a document store rooted at the project directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// LoadScript returns the project's script document.
func (s *Store) LoadScript(ctx context.Context) (*script.Script, error) {
	var doc script.Script
	if err := s.load(ctx, projectstore.ScriptDoc, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveScript writes the whole script document.
func (s *Store) SaveScript(ctx context.Context, doc *script.Script) error {
	return s.save(ctx, projectstore.ScriptDoc, doc)
}

// LoadNarration returns the project's narration document.
func (s *Store) LoadNarration(ctx context.Context) (*script.Narration, error) {
	var doc script.Narration
	if err := s.load(ctx, projectstore.NarrationDoc, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// SaveNarration writes the whole narration document.
func (s *Store) SaveNarration(ctx context.Context, doc *script.Narration) error {
	return s.save(ctx, projectstore.NarrationDoc, doc)
}

// VerifyDoc re-reads the named logical document and reports whether it parses
// as valid JSON. Unknown document names report true.
func (s *Store) VerifyDoc(ctx context.Context, name string) (bool, error) {
	switch name {
	case projectstore.ScriptDoc, projectstore.NarrationDoc:
	default:
		return true, nil
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("verify %s: %w", name, domain.ErrNotFound)
		}
		return false, fmt.Errorf("verify %s: %w", name, err)
	}
	return json.Valid(data), nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

func (s *Store) load(ctx context.Context, name string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", name, domain.ErrNotFound)
		}
		return fmt.Errorf("load %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, name string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	target := s.path(name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
