package service

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/clipforge/clipforge/internal/domain"
	"github.com/clipforge/clipforge/internal/domain/feedback"
	"github.com/clipforge/clipforge/internal/domain/script"
	"github.com/clipforge/clipforge/internal/port/llm"
	"github.com/clipforge/clipforge/internal/port/projectstore"
)

//go:embed templates/content_patch.tmpl
var contentPatchTmpl string

//go:embed templates/visual_cue_patch.tmpl
var visualCuePatchTmpl string

//go:embed templates/structure_patch.tmpl
var structurePatchTmpl string

var (
	contentTmpl   = template.Must(template.New("content_patch").Parse(contentPatchTmpl))
	visualCueTmpl = template.Must(template.New("visual_cue_patch").Parse(visualCuePatchTmpl))
	structureTmpl = template.Must(template.New("structure_patch").Parse(structurePatchTmpl))
)

// Generator turns a classified feedback item into concrete patches against
// the script document.
type Generator struct {
	provider llm.Provider
	projects projectstore.Store
	logger   *slog.Logger
}

// NewGenerator creates the patch generation stage.
func NewGenerator(provider llm.Provider, projects projectstore.Store, logger *slog.Logger) *Generator {
	return &Generator{provider: provider, projects: projects, logger: logger}
}

// Generate produces the item's patches. Any error discards all patches
// generated so far and fails the item (all-or-nothing per call).
func (g *Generator) Generate(ctx context.Context, item *feedback.Item) error {
	if item == nil {
		return fmt.Errorf("%w: nil feedback item", domain.ErrValidation)
	}
	if item.Intent == "" || item.Target == nil {
		item.Fail("feedback has not been parsed")
		return nil
	}
	item.Status = feedback.StatusGenerating

	patches, err := g.dispatch(ctx, item, item.Intent)
	if err != nil {
		item.Patches = nil
		item.Fail(fmt.Sprintf("patch generation failed: %v", err))
		return nil
	}

	item.Patches = patches
	g.logger.Info("patches generated", "item_id", item.ID, "intent", item.Intent, "patches", len(patches))
	return nil
}

func (g *Generator) dispatch(ctx context.Context, item *feedback.Item, intent feedback.Intent) (feedback.PatchList, error) {
	switch intent {
	case feedback.IntentScriptContent:
		return g.contentPatches(ctx, item)
	case feedback.IntentVisualCue, feedback.IntentVisualImplementation, feedback.IntentStyle:
		return g.visualCuePatches(ctx, item)
	case feedback.IntentScriptStructure:
		return g.structurePatch(ctx, item)
	case feedback.IntentTiming:
		return g.timingPatches(ctx, item)
	case feedback.IntentMixed:
		var all feedback.PatchList
		for _, sub := range item.SubIntents {
			// Each sub-dispatch sees a transient single-intent copy.
			sc := *item
			sc.Intent = sub
			sc.SubIntents = nil
			patches, err := g.dispatch(ctx, &sc, sub)
			if err != nil {
				return nil, err
			}
			all = append(all, patches...)
		}
		return all, nil
	}
	return nil, fmt.Errorf("%w: unknown intent %q", domain.ErrValidation, intent)
}

// targetScenes resolves the item's target scene ids against the script. An
// empty target list means the feedback is project-wide and every scene is in
// scope. Target ids that match no scene are skipped with a log.
func (g *Generator) targetScenes(ctx context.Context, item *feedback.Item) (*script.Script, []script.Scene, error) {
	doc, err := g.projects.LoadScript(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load script: %w", err)
	}

	if len(item.Target.SceneIDs) == 0 {
		return doc, doc.Scenes, nil
	}

	var scenes []script.Scene
	for _, target := range item.Target.SceneIDs {
		i := doc.FindScene(target)
		if i < 0 {
			g.logger.Warn("target scene not in script", "item_id", item.ID, "target", target)
			continue
		}
		scenes = append(scenes, doc.Scenes[i])
	}
	return doc, scenes, nil
}

type contentPromptData struct {
	SceneID   string
	Title     string
	Duration  float64
	Voiceover string
	Feedback  string
}

func (g *Generator) contentPatches(ctx context.Context, item *feedback.Item) (feedback.PatchList, error) {
	_, scenes, err := g.targetScenes(ctx, item)
	if err != nil {
		return nil, err
	}

	var patches feedback.PatchList
	for _, sc := range scenes {
		var buf bytes.Buffer
		if err := contentTmpl.Execute(&buf, contentPromptData{
			SceneID:   sc.SceneID,
			Title:     sc.Title,
			Duration:  sc.DurationSeconds,
			Voiceover: sc.Voiceover,
			Feedback:  sanitizePromptInput(item.FeedbackText),
		}); err != nil {
			return nil, fmt.Errorf("render content prompt: %w", err)
		}

		raw, err := g.provider.GenerateJSON(ctx, buf.String(), "")
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", sc.SceneID, err)
		}
		if raw == nil {
			continue
		}

		var res struct {
			NewVoiceover *string `json:"new_voiceover"`
		}
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("scene %s: unparseable content result: %w", sc.SceneID, err)
		}
		// The model declines to change scenes the feedback doesn't reach.
		if res.NewVoiceover == nil || *res.NewVoiceover == "" {
			continue
		}

		patches = append(patches, &feedback.ModifyScenePatch{
			PatchMeta: feedback.PatchMeta{
				Reason:   fmt.Sprintf("narration rewrite for %q: %s", sc.Title, item.Interpretation),
				Priority: 1,
			},
			SceneID:   sc.SceneID,
			FieldName: "voiceover",
			OldValue:  sc.Voiceover,
			NewValue:  *res.NewVoiceover,
		})
	}
	return patches, nil
}

type visualCuePromptData struct {
	SceneID    string
	Title      string
	CurrentCue string
	Feedback   string
}

func (g *Generator) visualCuePatches(ctx context.Context, item *feedback.Item) (feedback.PatchList, error) {
	_, scenes, err := g.targetScenes(ctx, item)
	if err != nil {
		return nil, err
	}

	var patches feedback.PatchList
	for _, sc := range scenes {
		cueJSON, err := json.MarshalIndent(sc.VisualCue, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("scene %s: marshal visual cue: %w", sc.SceneID, err)
		}

		var buf bytes.Buffer
		if err := visualCueTmpl.Execute(&buf, visualCuePromptData{
			SceneID:    sc.SceneID,
			Title:      sc.Title,
			CurrentCue: string(cueJSON),
			Feedback:   sanitizePromptInput(item.FeedbackText),
		}); err != nil {
			return nil, fmt.Errorf("render visual cue prompt: %w", err)
		}

		raw, err := g.provider.GenerateJSON(ctx, buf.String(), "")
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", sc.SceneID, err)
		}
		if raw == nil {
			continue
		}

		var res struct {
			NeedsUpdate  bool              `json:"needs_update"`
			NewVisualCue *script.VisualCue `json:"new_visual_cue"`
		}
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("scene %s: unparseable visual cue result: %w", sc.SceneID, err)
		}
		if !res.NeedsUpdate || res.NewVisualCue == nil {
			continue
		}

		// The cue's duration stays in step with the scene regardless of what
		// the model returned.
		cue := *res.NewVisualCue
		cue.DurationSeconds = sc.VisualCue.DurationSeconds

		patches = append(patches, &feedback.UpdateVisualCuePatch{
			PatchMeta: feedback.PatchMeta{
				Reason:   fmt.Sprintf("visual update for %q: %s", sc.Title, item.Interpretation),
				Priority: 1,
			},
			SceneID:                sc.SceneID,
			SceneTitle:             sc.Title,
			CurrentVisualCue:       sc.VisualCue,
			NewVisualCue:           cue,
			TriggerSceneRefinement: true,
		})
	}
	return patches, nil
}

type structurePromptData struct {
	SceneList string
	Feedback  string
}

func (g *Generator) structurePatch(ctx context.Context, item *feedback.Item) (feedback.PatchList, error) {
	doc, err := g.projects.LoadScript(ctx)
	if err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}

	var sceneList bytes.Buffer
	for i, sc := range doc.Scenes {
		fmt.Fprintf(&sceneList, "%d. [%s] %q (%.1fs)\n", i+1, sc.SceneID, sc.Title, sc.DurationSeconds)
	}

	var buf bytes.Buffer
	if err := structureTmpl.Execute(&buf, structurePromptData{
		SceneList: sceneList.String(),
		Feedback:  sanitizePromptInput(item.FeedbackText),
	}); err != nil {
		return nil, fmt.Errorf("render structure prompt: %w", err)
	}

	raw, err := g.provider.GenerateJSON(ctx, buf.String(), "")
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("structural analysis returned no result")
	}

	var res struct {
		Action  string `json:"action"`
		Details struct {
			InsertAfterSceneID string   `json:"insert_after_scene_id"`
			Title              string   `json:"title"`
			Narration          string   `json:"narration"`
			VisualDescription  string   `json:"visual_description"`
			DurationSeconds    float64  `json:"duration_seconds"`
			SceneID            string   `json:"scene_id"`
			NewOrder           []string `json:"new_order"`
		} `json:"details"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("unparseable structure result: %w", err)
	}

	meta := feedback.PatchMeta{Reason: res.Reason, Priority: 1}
	if meta.Reason == "" {
		meta.Reason = item.Interpretation
	}

	switch res.Action {
	case "add":
		if res.Details.Title == "" {
			return nil, fmt.Errorf("structural add without a title")
		}
		return feedback.PatchList{&feedback.AddScenePatch{
			PatchMeta:          meta,
			InsertAfterSceneID: res.Details.InsertAfterSceneID,
			NewSceneID:         script.Slugify(res.Details.Title),
			Title:              res.Details.Title,
			Narration:          res.Details.Narration,
			VisualDescription:  res.Details.VisualDescription,
			DurationSeconds:    res.Details.DurationSeconds,
		}}, nil
	case "remove":
		if res.Details.SceneID == "" {
			return nil, fmt.Errorf("structural remove without a scene id")
		}
		return feedback.PatchList{&feedback.RemoveScenePatch{
			PatchMeta: meta,
			SceneID:   res.Details.SceneID,
		}}, nil
	case "reorder":
		if len(res.Details.NewOrder) == 0 {
			return nil, fmt.Errorf("structural reorder without a scene order")
		}
		return feedback.PatchList{&feedback.ReorderScenesPatch{
			PatchMeta: meta,
			NewOrder:  res.Details.NewOrder,
		}}, nil
	}
	return nil, fmt.Errorf("unknown structural action %q", res.Action)
}

// timingPatches emits request-for-review placeholders: durations are not
// auto-resolved, a human or downstream process finalizes them.
func (g *Generator) timingPatches(ctx context.Context, item *feedback.Item) (feedback.PatchList, error) {
	_, scenes, err := g.targetScenes(ctx, item)
	if err != nil {
		return nil, err
	}

	var patches feedback.PatchList
	for _, sc := range scenes {
		patches = append(patches, &feedback.ModifyTimingPatch{
			PatchMeta: feedback.PatchMeta{
				Reason:   fmt.Sprintf("timing review for %q requested by feedback", sc.Title),
				Priority: 2,
			},
			SceneID:           sc.SceneID,
			CurrentDuration:   sc.DurationSeconds,
			AdjustmentRequest: item.FeedbackText,
		})
	}
	return patches, nil
}
