// Package projectstore defines the port interface for the project's script
// and narration documents.
package projectstore

import (
	"context"

	"github.com/clipforge/clipforge/internal/domain/script"
)

// Logical document names recorded in a feedback item's files_modified list.
const (
	ScriptDoc    = "script/script.json"
	NarrationDoc = "audio/narrations.json"
)

// Store gives read-modify-write access to the two project documents. The
// pipeline does not own them (upstream generation stages write them too),
// so implementations must always load and save whole documents, never
// partial updates.
type Store interface {
	// LoadScript returns the script document, or domain.ErrNotFound when the
	// project has no script yet.
	LoadScript(ctx context.Context) (*script.Script, error)
	SaveScript(ctx context.Context, doc *script.Script) error

	// LoadNarration returns the narration document, or domain.ErrNotFound.
	LoadNarration(ctx context.Context) (*script.Narration, error)
	SaveNarration(ctx context.Context, doc *script.Narration) error

	// VerifyDoc re-reads the named logical document and reports whether it
	// parses as valid JSON. Unknown names report true (nothing to check).
	VerifyDoc(ctx context.Context, name string) (bool, error)
}
