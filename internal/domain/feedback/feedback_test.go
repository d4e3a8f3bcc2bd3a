package feedback_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/clipforge/clipforge/internal/domain"
	"github.com/clipforge/clipforge/internal/domain/feedback"
	"github.com/clipforge/clipforge/internal/domain/script"
)

func TestParseIntentUnknownDefaults(t *testing.T) {
	if got := feedback.ParseIntent("color_grading"); got != feedback.IntentVisualImplementation {
		t.Errorf("ParseIntent(unknown) = %q, want visual_implementation", got)
	}
	if got := feedback.ParseIntent("timing"); got != feedback.IntentTiming {
		t.Errorf("ParseIntent(timing) = %q", got)
	}
}

func TestParseScopeDefaults(t *testing.T) {
	if got := feedback.ParseScope("galaxy"); got != feedback.ScopeScene {
		t.Errorf("ParseScope(unknown) = %q, want scene", got)
	}
	if got := feedback.ParseScope("project"); got != feedback.ScopeProject {
		t.Errorf("ParseScope(project) = %q", got)
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := feedback.ParseStatus("applying"); err != nil {
		t.Errorf("ParseStatus(applying) = %v", err)
	}
	if _, err := feedback.ParseStatus("bogus"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("ParseStatus(bogus) = %v, want ErrValidation", err)
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []feedback.Status{feedback.StatusApplied, feedback.StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []feedback.Status{feedback.StatusPending, feedback.StatusAnalyzing, feedback.StatusVerifying} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestItemValidateSubIntents(t *testing.T) {
	it := feedback.Item{ID: "fb_0001_1700000000", Intent: feedback.IntentMixed}
	if err := it.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("mixed without sub-intents: err = %v", err)
	}

	it.SubIntents = []feedback.Intent{feedback.IntentScriptContent, feedback.IntentTiming}
	if err := it.Validate(); err != nil {
		t.Errorf("mixed with sub-intents: err = %v", err)
	}

	it.Intent = feedback.IntentTiming
	if err := it.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("single intent with sub-intents: err = %v", err)
	}
}

func TestItemValidateAppliedNeedsFiles(t *testing.T) {
	it := feedback.Item{
		ID:     "fb_0001_1700000000",
		Intent: feedback.IntentScriptContent,
		Status: feedback.StatusApplied,
	}
	if err := it.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("applied without files: err = %v", err)
	}
	it.FilesModified = []string{"script.json"}
	if err := it.Validate(); err != nil {
		t.Errorf("applied with files: err = %v", err)
	}
}

func TestPatchListRoundTrip(t *testing.T) {
	in := feedback.PatchList{
		&feedback.ModifyScenePatch{
			PatchMeta: feedback.PatchMeta{Reason: "tighten voiceover", Priority: 1},
			SceneID:   "scene1",
			FieldName: "voiceover",
			NewValue:  "shorter line",
		},
		&feedback.UpdateVisualCuePatch{
			PatchMeta:              feedback.PatchMeta{Reason: "brighter palette", Priority: 1},
			SceneID:                "scene2",
			SceneTitle:             "The Discovery",
			NewVisualCue:           script.VisualCue{Description: "sunlit lab", VisualType: "animation", DurationSeconds: 12},
			TriggerSceneRefinement: true,
		},
		&feedback.ReorderScenesPatch{
			PatchMeta: feedback.PatchMeta{Reason: "payoff earlier", Priority: 2},
			NewOrder:  []string{"scene2", "scene1"},
		},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	for _, tag := range []string{`"patch_type":"modify_scene"`, `"patch_type":"update_visual_cue"`, `"patch_type":"reorder_scenes"`} {
		if !strings.Contains(string(data), tag) {
			t.Errorf("encoded patches missing %s: %s", tag, data)
		}
	}

	var out feedback.PatchList
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("decoded %d patches, want 3", len(out))
	}
	mod, ok := out[0].(*feedback.ModifyScenePatch)
	if !ok || mod.NewValue != "shorter line" {
		t.Errorf("patch 0 = %#v", out[0])
	}
	cue, ok := out[1].(*feedback.UpdateVisualCuePatch)
	if !ok || !cue.TriggerSceneRefinement || cue.NewVisualCue.DurationSeconds != 12 {
		t.Errorf("patch 1 = %#v", out[1])
	}
	ro, ok := out[2].(*feedback.ReorderScenesPatch)
	if !ok || len(ro.NewOrder) != 2 {
		t.Errorf("patch 2 = %#v", out[2])
	}
	if ro.Meta().Reason != "payoff earlier" {
		t.Errorf("meta = %+v", ro.Meta())
	}
}

func TestPatchListRejectsUnknownType(t *testing.T) {
	err := json.Unmarshal([]byte(`[{"patch_type": "teleport_scene"}]`), &feedback.PatchList{})
	if err == nil || !strings.Contains(err.Error(), "teleport_scene") {
		t.Errorf("err = %v, want unknown patch_type", err)
	}
}
