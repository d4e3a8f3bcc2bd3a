// Package feedback defines the domain model for the feedback revision
// pipeline: user feedback items, their lifecycle, and the patches derived
// from them.
package feedback

import (
	"fmt"
	"time"

	"github.com/clipforge/clipforge/internal/domain"
)

// Status represents the lifecycle state of a feedback item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAnalyzing  Status = "analyzing"
	StatusGenerating Status = "generating"
	StatusApplying   Status = "applying"
	StatusVerifying  Status = "verifying"
	StatusApplied    Status = "applied"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusApplied || s == StatusFailed
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusAnalyzing, StatusGenerating,
		StatusApplying, StatusVerifying, StatusApplied, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", domain.ErrValidation, s)
}

// Intent classifies what kind of change a feedback item asks for.
type Intent string

const (
	IntentScriptContent        Intent = "script_content"        // narration text
	IntentScriptStructure      Intent = "script_structure"      // add/remove/reorder scenes
	IntentVisualCue            Intent = "visual_cue"            // visual spec text
	IntentVisualImplementation Intent = "visual_implementation" // routed like visual_cue
	IntentTiming               Intent = "timing"                // scene duration
	IntentStyle                Intent = "style"                 // routed like visual_cue
	IntentMixed                Intent = "mixed"                 // >=2 of the above as sub-intents
)

// ParseIntent maps a string onto the closed intent set. Unknown values fall
// back to IntentVisualImplementation: visual changes always go through the
// cue-update + re-verification path, so it is the safest misclassification.
func ParseIntent(s string) Intent {
	if ValidIntent(s) {
		return Intent(s)
	}
	return IntentVisualImplementation
}

// ValidIntent reports whether s is a member of the closed intent set.
func ValidIntent(s string) bool {
	switch Intent(s) {
	case IntentScriptContent, IntentScriptStructure, IntentVisualCue,
		IntentVisualImplementation, IntentTiming, IntentStyle, IntentMixed:
		return true
	}
	return false
}

// Scope describes how much of the project a feedback item touches.
type Scope string

const (
	ScopeScene      Scope = "scene"
	ScopeMultiScene Scope = "multi_scene"
	ScopeProject    Scope = "project"
)

// ParseScope maps a string onto the scope set, defaulting to ScopeScene.
func ParseScope(s string) Scope {
	switch sc := Scope(s); sc {
	case ScopeScene, ScopeMultiScene, ScopeProject:
		return sc
	}
	return ScopeScene
}

// Target names the scenes a feedback item affects. An empty SceneIDs list
// means the feedback is project-wide.
type Target struct {
	SceneIDs []string `json:"scene_ids"`
	Scope    Scope    `json:"scope"`
}

// Item is one user feedback submission and its full processing record.
type Item struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	FeedbackText string    `json:"feedback_text"`
	Status       Status    `json:"status"`

	// Analysis results, written by the parser stage.
	Intent         Intent   `json:"intent,omitempty"`
	SubIntents     []Intent `json:"sub_intents,omitempty"`
	Target         *Target  `json:"target,omitempty"`
	Interpretation string   `json:"interpretation,omitempty"`

	// Generation results, written by the generator stage.
	Patches PatchList `json:"patches,omitempty"`

	// Application results, written by the applicator stage.
	FilesModified      []string `json:"files_modified,omitempty"`
	VerificationPassed *bool    `json:"verification_passed,omitempty"`
	ErrorMessage       string   `json:"error_message,omitempty"`
}

// Fail marks the item failed with the given message.
func (it *Item) Fail(msg string) {
	it.Status = StatusFailed
	it.ErrorMessage = msg
}

// Validate checks the item's structural invariants: sub-intents are present
// exactly when the intent is mixed, and an applied item has modified files.
func (it *Item) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("%w: item id is required", domain.ErrValidation)
	}
	if it.Intent == IntentMixed && len(it.SubIntents) == 0 {
		return fmt.Errorf("%w: mixed intent requires sub-intents", domain.ErrValidation)
	}
	if it.Intent != IntentMixed && len(it.SubIntents) > 0 {
		return fmt.Errorf("%w: sub-intents are only valid for mixed intent", domain.ErrValidation)
	}
	if it.Status == StatusApplied && len(it.FilesModified) == 0 {
		return fmt.Errorf("%w: applied item must record modified files", domain.ErrValidation)
	}
	return nil
}

// History is the per-project ordered collection of feedback items. It is
// owned and persisted exclusively by the feedback store.
type History struct {
	ProjectID string `json:"project_id"`
	Items     []Item `json:"items"`
}
