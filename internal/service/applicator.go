package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clipforge/clipforge/internal/adapter/ws"
	"github.com/clipforge/clipforge/internal/domain"
	"github.com/clipforge/clipforge/internal/domain/feedback"
	"github.com/clipforge/clipforge/internal/domain/script"
	"github.com/clipforge/clipforge/internal/port/inspector"
	"github.com/clipforge/clipforge/internal/port/projectstore"
)

// Applicator mutates the project documents according to an item's patches,
// runs the scene refinement pass for visual changes, and optionally verifies
// the touched documents afterwards.
type Applicator struct {
	docs      projectstore.Store
	inspector inspector.Inspector
	hub       *ws.Hub
	logger    *slog.Logger
}

// NewApplicator creates the patch application stage. hub may be nil when no
// websocket clients are served (tests, one-shot CLI runs).
func NewApplicator(docs projectstore.Store, insp inspector.Inspector, hub *ws.Hub, logger *slog.Logger) *Applicator {
	return &Applicator{docs: docs, inspector: insp, hub: hub, logger: logger}
}

// Apply runs every patch on the item, then the refinement pass for queued
// scenes, then (when verify is set) a syntactic re-parse of each touched
// document. There is no rollback: a mid-list failure marks the item failed
// while the documents written so far stay written, with FilesModified
// recording exactly what changed.
func (a *Applicator) Apply(ctx context.Context, item *feedback.Item, verify bool) error {
	if item == nil {
		return fmt.Errorf("%w: nil feedback item", domain.ErrValidation)
	}
	if len(item.Patches) == 0 {
		item.Fail("no patches to apply")
		return nil
	}
	item.Status = feedback.StatusApplying

	touched := newTouchedSet(item.FilesModified)
	var refineQueue []string

	for i, p := range item.Patches {
		docs, err := a.applyPatch(ctx, p)
		if err != nil {
			item.FilesModified = touched.list()
			item.Fail(fmt.Sprintf("patch %d (%s): %v", i+1, p.Type(), err))
			return nil
		}
		touched.add(docs...)

		if vc, ok := p.(*feedback.UpdateVisualCuePatch); ok && vc.TriggerSceneRefinement {
			refineQueue = append(refineQueue, vc.SceneID)
		}

		a.broadcast(ctx, ws.EventPatchApplied, ws.PatchAppliedEvent{
			ItemID:    item.ID,
			PatchType: string(p.Type()),
			SceneID:   patchSceneID(p),
			Reason:    p.Meta().Reason,
		})
	}

	if err := a.refineScenes(ctx, item, refineQueue, touched); err != nil {
		item.FilesModified = touched.list()
		item.Fail(fmt.Sprintf("scene refinement: %v", err))
		return nil
	}

	item.FilesModified = touched.list()

	if verify {
		item.Status = feedback.StatusVerifying
		passed := a.verifyDocs(ctx, item.FilesModified)
		item.VerificationPassed = &passed
		if !passed {
			// Verification failure is surfaced, not fatal: the item still
			// lands on applied and the operator decides what to do.
			a.logger.Warn("post-apply verification failed",
				"item_id", item.ID, "files", item.FilesModified)
		}
	}

	item.Status = feedback.StatusApplied
	a.logger.Info("patches applied",
		"item_id", item.ID,
		"patches", len(item.Patches),
		"files", item.FilesModified,
		"refined_scenes", len(refineQueue))
	return nil
}

func (a *Applicator) applyPatch(ctx context.Context, p feedback.Patch) ([]string, error) {
	switch pt := p.(type) {
	case *feedback.ModifyScenePatch:
		return a.applyModifyScene(ctx, pt)
	case *feedback.UpdateVisualCuePatch:
		return a.applyUpdateVisualCue(ctx, pt)
	case *feedback.AddScenePatch:
		return a.applyAddScene(ctx, pt)
	case *feedback.RemoveScenePatch:
		return a.applyRemoveScene(ctx, pt)
	case *feedback.ReorderScenesPatch:
		return a.applyReorderScenes(ctx, pt)
	case *feedback.ModifyTimingPatch:
		return a.applyModifyTiming(ctx, pt)
	default:
		a.logger.Warn("unknown patch type skipped", "patch_type", p.Type())
		return nil, nil
	}
}

func (a *Applicator) applyModifyScene(ctx context.Context, p *feedback.ModifyScenePatch) ([]string, error) {
	doc, err := a.docs.LoadScript(ctx)
	if err != nil {
		return nil, err
	}
	i := doc.FindScene(p.SceneID)
	if i < 0 {
		return nil, fmt.Errorf("scene %q not found", p.SceneID)
	}

	sc := &doc.Scenes[i]
	switch p.FieldName {
	case "voiceover":
		sc.Voiceover = p.NewValue
	case "title":
		sc.Title = p.NewValue
	case "notes":
		sc.Notes = p.NewValue
	case "scene_type":
		sc.SceneType = p.NewValue
	default:
		return nil, fmt.Errorf("unknown scene field %q", p.FieldName)
	}

	if err := a.docs.SaveScript(ctx, doc); err != nil {
		return nil, err
	}
	return []string{projectstore.ScriptDoc}, nil
}

func (a *Applicator) applyUpdateVisualCue(ctx context.Context, p *feedback.UpdateVisualCuePatch) ([]string, error) {
	doc, err := a.docs.LoadScript(ctx)
	if err != nil {
		return nil, err
	}
	i := doc.FindScene(p.SceneID)
	if i < 0 {
		return nil, fmt.Errorf("scene %q not found", p.SceneID)
	}

	doc.Scenes[i].VisualCue = p.NewVisualCue
	if err := a.docs.SaveScript(ctx, doc); err != nil {
		return nil, err
	}
	return []string{projectstore.ScriptDoc}, nil
}

func (a *Applicator) applyAddScene(ctx context.Context, p *feedback.AddScenePatch) ([]string, error) {
	scriptDoc, narrationDoc, err := a.loadBoth(ctx)
	if err != nil {
		return nil, err
	}

	// Stage both document mutations before writing either.
	scriptDoc.InsertScene(script.Scene{
		SceneID:   p.NewSceneID,
		Title:     p.Title,
		Voiceover: p.Narration,
		VisualCue: script.VisualCue{
			Description:     p.VisualDescription,
			VisualType:      "animation",
			DurationSeconds: p.DurationSeconds,
		},
		DurationSeconds: p.DurationSeconds,
	}, p.InsertAfterSceneID)

	narrationDoc.InsertScene(script.NarrationScene{
		SceneID:         p.NewSceneID,
		Title:           p.Title,
		DurationSeconds: p.DurationSeconds,
		Narration:       p.Narration,
	}, p.InsertAfterSceneID)

	return a.saveBoth(ctx, scriptDoc, narrationDoc)
}

func (a *Applicator) applyRemoveScene(ctx context.Context, p *feedback.RemoveScenePatch) ([]string, error) {
	scriptDoc, narrationDoc, err := a.loadBoth(ctx)
	if err != nil {
		return nil, err
	}

	if !scriptDoc.RemoveScene(p.SceneID) {
		return nil, fmt.Errorf("scene %q not found", p.SceneID)
	}
	if !narrationDoc.RemoveScene(p.SceneID) {
		a.logger.Warn("scene missing from narration document", "scene_id", p.SceneID)
	}

	return a.saveBoth(ctx, scriptDoc, narrationDoc)
}

func (a *Applicator) applyReorderScenes(ctx context.Context, p *feedback.ReorderScenesPatch) ([]string, error) {
	scriptDoc, narrationDoc, err := a.loadBoth(ctx)
	if err != nil {
		return nil, err
	}

	scriptDoc.Reorder(p.NewOrder)
	narrationDoc.Reorder(p.NewOrder)

	return a.saveBoth(ctx, scriptDoc, narrationDoc)
}

// applyModifyTiming annotates the scene with the requested adjustment instead
// of changing its duration: durations are resolved by a later review, not by
// the pipeline.
func (a *Applicator) applyModifyTiming(ctx context.Context, p *feedback.ModifyTimingPatch) ([]string, error) {
	doc, err := a.docs.LoadScript(ctx)
	if err != nil {
		return nil, err
	}
	i := doc.FindScene(p.SceneID)
	if i < 0 {
		return nil, fmt.Errorf("scene %q not found", p.SceneID)
	}

	note := fmt.Sprintf("timing review requested (current %.1fs): %s", p.CurrentDuration, p.AdjustmentRequest)
	sc := &doc.Scenes[i]
	if sc.Notes != "" {
		sc.Notes += "\n"
	}
	sc.Notes += note

	if err := a.docs.SaveScript(ctx, doc); err != nil {
		return nil, err
	}
	return []string{projectstore.ScriptDoc}, nil
}

func (a *Applicator) loadBoth(ctx context.Context) (*script.Script, *script.Narration, error) {
	scriptDoc, err := a.docs.LoadScript(ctx)
	if err != nil {
		return nil, nil, err
	}
	narrationDoc, err := a.docs.LoadNarration(ctx)
	if err != nil {
		return nil, nil, err
	}
	return scriptDoc, narrationDoc, nil
}

func (a *Applicator) saveBoth(ctx context.Context, scriptDoc *script.Script, narrationDoc *script.Narration) ([]string, error) {
	if err := a.docs.SaveScript(ctx, scriptDoc); err != nil {
		return nil, err
	}
	if err := a.docs.SaveNarration(ctx, narrationDoc); err != nil {
		// The script already hit disk; report it as touched so the caller's
		// files_modified reflects reality even on failure.
		return []string{projectstore.ScriptDoc}, err
	}
	return []string{projectstore.ScriptDoc, projectstore.NarrationDoc}, nil
}

// refineScenes resolves each queued scene to its 0-based index and runs the
// visual inspector on it. A scene that disappeared from the script (e.g.
// removed by a later patch) is a per-scene failure, not an abort; a transport
// error from the inspector is.
func (a *Applicator) refineScenes(ctx context.Context, item *feedback.Item, queue []string, touched *touchedSet) error {
	if len(queue) == 0 {
		return nil
	}

	doc, err := a.docs.LoadScript(ctx)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}

	for _, sceneID := range queue {
		i := doc.FindScene(sceneID)
		if i < 0 {
			a.logger.Warn("refinement scene not in script", "item_id", item.ID, "scene_id", sceneID)
			continue
		}

		res, err := a.inspector.RefineScene(ctx, i)
		if err != nil {
			return fmt.Errorf("scene %s: %w", sceneID, err)
		}

		if res.SceneFile != "" {
			touched.add(res.SceneFile)
		}
		a.logger.Info("scene refined",
			"item_id", item.ID,
			"scene_id", sceneID,
			"scene_title", res.SceneTitle,
			"verification_passed", res.VerificationPassed,
			"issues", len(res.IssuesFound),
			"fixes", len(res.FixesApplied))

		a.broadcast(ctx, ws.EventSceneRefinement, ws.SceneRefinementEvent{
			ItemID:             item.ID,
			SceneID:            sceneID,
			SceneTitle:         res.SceneTitle,
			VerificationPassed: res.VerificationPassed,
			IssuesFound:        res.IssuesFound,
			FixesApplied:       res.FixesApplied,
		})
	}
	return nil
}

// verifyDocs re-parses every touched document that the store knows how to
// check. Syntactic only: a well-formed JSON file with a semantically wrong
// edit still passes.
func (a *Applicator) verifyDocs(ctx context.Context, files []string) bool {
	passed := true
	for _, name := range files {
		ok, err := a.docs.VerifyDoc(ctx, name)
		if err != nil {
			a.logger.Warn("document verification errored", "doc", name, "error", err)
			passed = false
			continue
		}
		if !ok {
			passed = false
		}
	}
	return passed
}

func (a *Applicator) broadcast(ctx context.Context, event string, payload any) {
	if a.hub == nil {
		return
	}
	a.hub.BroadcastEvent(ctx, event, payload)
}

func patchSceneID(p feedback.Patch) string {
	switch pt := p.(type) {
	case *feedback.ModifyScenePatch:
		return pt.SceneID
	case *feedback.UpdateVisualCuePatch:
		return pt.SceneID
	case *feedback.AddScenePatch:
		return pt.NewSceneID
	case *feedback.RemoveScenePatch:
		return pt.SceneID
	case *feedback.ModifyTimingPatch:
		return pt.SceneID
	}
	return ""
}

// touchedSet is an insertion-ordered string set for files_modified.
type touchedSet struct {
	seen  map[string]bool
	order []string
}

func newTouchedSet(initial []string) *touchedSet {
	s := &touchedSet{seen: make(map[string]bool)}
	s.add(initial...)
	return s
}

func (s *touchedSet) add(names ...string) {
	for _, n := range names {
		if n == "" || s.seen[n] {
			continue
		}
		s.seen[n] = true
		s.order = append(s.order, n)
	}
}

func (s *touchedSet) list() []string { return s.order }
