package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/clipforge/clipforge/internal/domain/feedback"
	"github.com/clipforge/clipforge/internal/port/inspector"
	"github.com/clipforge/clipforge/internal/port/projectstore"
	"github.com/clipforge/clipforge/internal/service"
)

func itemWithPatches(patches ...feedback.Patch) *feedback.Item {
	return &feedback.Item{
		ID:           "fb_0001_1700000000",
		FeedbackText: "test feedback",
		Status:       feedback.StatusGenerating,
		Intent:       feedback.IntentScriptContent,
		Target:       &feedback.Target{Scope: feedback.ScopeScene},
		Patches:      patches,
	}
}

func TestApplicatorRequiresPatches(t *testing.T) {
	a := service.NewApplicator(&fakeDocs{script: testScript()}, &fakeInspector{}, nil, discardLogger())

	item := itemWithPatches()
	if err := a.Apply(context.Background(), item, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if item.Status != feedback.StatusFailed {
		t.Fatalf("status = %s, want failed", item.Status)
	}
	if !strings.Contains(item.ErrorMessage, "no patches") {
		t.Errorf("error message = %q", item.ErrorMessage)
	}
}

func TestApplicatorModifyScene(t *testing.T) {
	docs := &fakeDocs{script: testScript(), narration: testNarration()}
	a := service.NewApplicator(docs, &fakeInspector{}, nil, discardLogger())

	item := itemWithPatches(&feedback.ModifyScenePatch{
		PatchMeta: feedback.PatchMeta{Reason: "tighter hook", Priority: 1},
		SceneID:   "scene1",
		FieldName: "voiceover",
		NewValue:  "Leaves are solar factories.",
	})
	if err := a.Apply(context.Background(), item, true); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if item.Status != feedback.StatusApplied {
		t.Fatalf("status = %s (%s), want applied", item.Status, item.ErrorMessage)
	}
	if len(item.FilesModified) != 1 || item.FilesModified[0] != projectstore.ScriptDoc {
		t.Errorf("files modified = %v", item.FilesModified)
	}
	if item.VerificationPassed == nil || !*item.VerificationPassed {
		t.Errorf("verification passed = %v, want true", item.VerificationPassed)
	}
	if got := docs.script.Scenes[0].Voiceover; got != "Leaves are solar factories." {
		t.Errorf("voiceover = %q", got)
	}
}

func TestApplicatorVisualCueTriggersRefinement(t *testing.T) {
	docs := &fakeDocs{script: testScript(), narration: testNarration()}
	insp := &fakeInspector{results: map[int]*inspector.RefineResult{
		1: {
			SceneID:            "scene2",
			SceneTitle:         "The Discovery",
			SceneFile:          "scenes/scene2.tsx",
			VerificationPassed: true,
			FixesApplied:       []string{"aligned diagram labels"},
		},
	}}
	a := service.NewApplicator(docs, insp, nil, discardLogger())

	// The patch addresses the scene by its title slug, not its literal id.
	item := itemWithPatches(&feedback.UpdateVisualCuePatch{
		PatchMeta:              feedback.PatchMeta{Reason: "clearer diagram", Priority: 1},
		SceneID:                "the_discovery",
		SceneTitle:             "The Discovery",
		NewVisualCue:           docs.script.Scenes[1].VisualCue,
		TriggerSceneRefinement: true,
	})
	if err := a.Apply(context.Background(), item, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if item.Status != feedback.StatusApplied {
		t.Fatalf("status = %s (%s), want applied", item.Status, item.ErrorMessage)
	}
	if len(insp.calls) != 1 || insp.calls[0] != 1 {
		t.Errorf("inspector calls = %v, want [1] (0-based index)", insp.calls)
	}
	want := []string{projectstore.ScriptDoc, "scenes/scene2.tsx"}
	if len(item.FilesModified) != 2 || item.FilesModified[0] != want[0] || item.FilesModified[1] != want[1] {
		t.Errorf("files modified = %v, want %v", item.FilesModified, want)
	}
}

func TestApplicatorRefinementSceneGoneIsNonFatal(t *testing.T) {
	docs := &fakeDocs{script: testScript(), narration: testNarration()}
	insp := &fakeInspector{}
	a := service.NewApplicator(docs, insp, nil, discardLogger())

	item := itemWithPatches(&feedback.UpdateVisualCuePatch{
		PatchMeta:              feedback.PatchMeta{Reason: "cleanup", Priority: 1},
		SceneID:                "scene2",
		NewVisualCue:           docs.script.Scenes[1].VisualCue,
		TriggerSceneRefinement: true,
	}, &feedback.RemoveScenePatch{
		PatchMeta: feedback.PatchMeta{Reason: "cut the scene after all", Priority: 1},
		SceneID:   "scene2",
	})
	if err := a.Apply(context.Background(), item, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if item.Status != feedback.StatusApplied {
		t.Fatalf("status = %s (%s), want applied", item.Status, item.ErrorMessage)
	}
	if len(insp.calls) != 0 {
		t.Errorf("inspector calls = %v, want none for a removed scene", insp.calls)
	}
}

func TestApplicatorAddScene(t *testing.T) {
	docs := &fakeDocs{script: testScript(), narration: testNarration()}
	a := service.NewApplicator(docs, &fakeInspector{}, nil, discardLogger())

	item := itemWithPatches(&feedback.AddScenePatch{
		PatchMeta:          feedback.PatchMeta{Reason: "bridge scene", Priority: 1},
		InsertAfterSceneID: "scene1",
		NewSceneID:         "the_energy_cycle",
		Title:              "The Energy Cycle",
		Narration:          "Sugar fuels everything the plant does.",
		VisualDescription:  "A looping energy diagram",
		DurationSeconds:    10,
	})
	if err := a.Apply(context.Background(), item, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if item.Status != feedback.StatusApplied {
		t.Fatalf("status = %s (%s), want applied", item.Status, item.ErrorMessage)
	}

	if len(docs.script.Scenes) != 3 || docs.script.Scenes[1].SceneID != "the_energy_cycle" {
		t.Fatalf("script scenes = %+v", docs.script.Scenes)
	}
	if len(docs.narration.Scenes) != 3 || docs.narration.Scenes[1].SceneID != "the_energy_cycle" {
		t.Fatalf("narration scenes = %+v", docs.narration.Scenes)
	}
	if docs.script.TotalDurationSeconds != 30 {
		t.Errorf("script total = %v, want 30", docs.script.TotalDurationSeconds)
	}
	if docs.narration.TotalDurationSeconds != 30 {
		t.Errorf("narration total = %v, want 30", docs.narration.TotalDurationSeconds)
	}

	want := []string{projectstore.ScriptDoc, projectstore.NarrationDoc}
	if len(item.FilesModified) != 2 || item.FilesModified[0] != want[0] || item.FilesModified[1] != want[1] {
		t.Errorf("files modified = %v, want %v", item.FilesModified, want)
	}
}

func TestApplicatorAddSceneWithoutAnchorInsertsFirst(t *testing.T) {
	docs := &fakeDocs{script: testScript(), narration: testNarration()}
	a := service.NewApplicator(docs, &fakeInspector{}, nil, discardLogger())

	item := itemWithPatches(&feedback.AddScenePatch{
		PatchMeta:       feedback.PatchMeta{Reason: "new cold open", Priority: 1},
		NewSceneID:      "cold_open",
		Title:           "Cold Open",
		Narration:       "What if plants could talk?",
		DurationSeconds: 5,
	})
	if err := a.Apply(context.Background(), item, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if docs.script.Scenes[0].SceneID != "cold_open" {
		t.Errorf("scene 0 = %q, want cold_open", docs.script.Scenes[0].SceneID)
	}
	if docs.narration.Scenes[0].SceneID != "cold_open" {
		t.Errorf("narration scene 0 = %q, want cold_open", docs.narration.Scenes[0].SceneID)
	}
}

func TestApplicatorRemoveScene(t *testing.T) {
	docs := &fakeDocs{script: testScript(), narration: testNarration()}
	a := service.NewApplicator(docs, &fakeInspector{}, nil, discardLogger())

	item := itemWithPatches(&feedback.RemoveScenePatch{
		PatchMeta: feedback.PatchMeta{Reason: "redundant scene", Priority: 1},
		SceneID:   "scene1",
	})
	if err := a.Apply(context.Background(), item, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if item.Status != feedback.StatusApplied {
		t.Fatalf("status = %s (%s), want applied", item.Status, item.ErrorMessage)
	}

	if len(docs.script.Scenes) != 1 || docs.script.Scenes[0].SceneID != "scene2" {
		t.Errorf("script scenes = %+v", docs.script.Scenes)
	}
	if len(docs.narration.Scenes) != 1 || docs.narration.Scenes[0].SceneID != "scene2" {
		t.Errorf("narration scenes = %+v", docs.narration.Scenes)
	}
	if docs.script.TotalDurationSeconds != 12 || docs.narration.TotalDurationSeconds != 12 {
		t.Errorf("totals = %v / %v, want 12", docs.script.TotalDurationSeconds, docs.narration.TotalDurationSeconds)
	}
}

func TestApplicatorReorderKeepsUnlistedScenes(t *testing.T) {
	docs := &fakeDocs{script: testScript(), narration: testNarration()}
	a := service.NewApplicator(docs, &fakeInspector{}, nil, discardLogger())

	item := itemWithPatches(&feedback.ReorderScenesPatch{
		PatchMeta: feedback.PatchMeta{Reason: "lead with the discovery", Priority: 1},
		NewOrder:  []string{"scene2"},
	})
	if err := a.Apply(context.Background(), item, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if docs.script.Scenes[0].SceneID != "scene2" || docs.script.Scenes[1].SceneID != "scene1" {
		t.Errorf("script order = %q, %q", docs.script.Scenes[0].SceneID, docs.script.Scenes[1].SceneID)
	}
	if docs.narration.Scenes[0].SceneID != "scene2" || docs.narration.Scenes[1].SceneID != "scene1" {
		t.Errorf("narration order = %q, %q", docs.narration.Scenes[0].SceneID, docs.narration.Scenes[1].SceneID)
	}
}

func TestApplicatorTimingAnnotatesScene(t *testing.T) {
	docs := &fakeDocs{script: testScript(), narration: testNarration()}
	a := service.NewApplicator(docs, &fakeInspector{}, nil, discardLogger())

	item := itemWithPatches(&feedback.ModifyTimingPatch{
		PatchMeta:         feedback.PatchMeta{Reason: "too slow", Priority: 2},
		SceneID:           "scene2",
		CurrentDuration:   12,
		AdjustmentRequest: "tighten this scene",
	})
	if err := a.Apply(context.Background(), item, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	sc := docs.script.Scenes[1]
	if !strings.Contains(sc.Notes, "tighten this scene") {
		t.Errorf("notes = %q, want timing annotation", sc.Notes)
	}
	if sc.DurationSeconds != 12 {
		t.Errorf("duration = %v, changed by a review placeholder", sc.DurationSeconds)
	}
}

func TestApplicatorFailureKeepsPartialState(t *testing.T) {
	docs := &fakeDocs{script: testScript(), narration: testNarration()}
	a := service.NewApplicator(docs, &fakeInspector{}, nil, discardLogger())

	item := itemWithPatches(
		&feedback.ModifyScenePatch{
			PatchMeta: feedback.PatchMeta{Reason: "first edit", Priority: 1},
			SceneID:   "scene1",
			FieldName: "voiceover",
			NewValue:  "changed before the failure",
		},
		&feedback.ModifyScenePatch{
			PatchMeta: feedback.PatchMeta{Reason: "second edit", Priority: 1},
			SceneID:   "scene99",
			FieldName: "voiceover",
			NewValue:  "never lands",
		},
	)
	if err := a.Apply(context.Background(), item, true); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if item.Status != feedback.StatusFailed {
		t.Fatalf("status = %s, want failed", item.Status)
	}
	if !strings.Contains(item.ErrorMessage, "scene99") {
		t.Errorf("error message = %q", item.ErrorMessage)
	}
	// No rollback: the first patch stays written and is recorded.
	if got := docs.script.Scenes[0].Voiceover; got != "changed before the failure" {
		t.Errorf("voiceover = %q, first patch rolled back", got)
	}
	if len(item.FilesModified) != 1 || item.FilesModified[0] != projectstore.ScriptDoc {
		t.Errorf("files modified = %v", item.FilesModified)
	}
	if item.VerificationPassed != nil {
		t.Errorf("verification passed = %v, want nil (never attempted)", item.VerificationPassed)
	}
}

func TestApplicatorVerificationFailureStillApplied(t *testing.T) {
	docs := &fakeDocs{
		script:     testScript(),
		narration:  testNarration(),
		verifyFail: map[string]bool{projectstore.ScriptDoc: true},
	}
	a := service.NewApplicator(docs, &fakeInspector{}, nil, discardLogger())

	item := itemWithPatches(&feedback.ModifyScenePatch{
		PatchMeta: feedback.PatchMeta{Reason: "edit", Priority: 1},
		SceneID:   "scene1",
		FieldName: "voiceover",
		NewValue:  "new text",
	})
	if err := a.Apply(context.Background(), item, true); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if item.Status != feedback.StatusApplied {
		t.Fatalf("status = %s, want applied despite verification failure", item.Status)
	}
	if item.VerificationPassed == nil || *item.VerificationPassed {
		t.Errorf("verification passed = %v, want false", item.VerificationPassed)
	}
}
