// Package inspector defines the port interface for scene-level visual
// verification and refinement.
package inspector

import "context"

// RefineResult is the outcome of refining one storyboard scene: rendered
// frames are inspected against the project's quality principles and
// code-level fixes may have been applied.
type RefineResult struct {
	SceneID            string   `json:"scene_id"`
	SceneTitle         string   `json:"scene_title"`
	SceneFile          string   `json:"scene_file,omitempty"`
	VerificationPassed bool     `json:"verification_passed"`
	IssuesFound        []string `json:"issues_found"`
	FixesApplied       []string `json:"fixes_applied"`
	ErrorMessage       string   `json:"error_message,omitempty"`
}

// Inspector is the interface for the visual verification pass invoked after
// visual-cue patches are applied.
type Inspector interface {
	// RefineScene inspects and refines the scene at the given 0-based
	// storyboard index.
	RefineScene(ctx context.Context, sceneIndex int) (*RefineResult, error)
}
