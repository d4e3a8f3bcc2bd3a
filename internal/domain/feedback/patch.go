package feedback

import (
	"encoding/json"
	"fmt"

	"github.com/clipforge/clipforge/internal/domain/script"
)

// PatchType tags the closed set of patch variants.
type PatchType string

const (
	PatchModifyScene     PatchType = "modify_scene"
	PatchUpdateVisualCue PatchType = "update_visual_cue"
	PatchAddScene        PatchType = "add_scene"
	PatchRemoveScene     PatchType = "remove_scene"
	PatchReorderScenes   PatchType = "reorder_scenes"
	PatchModifyTiming    PatchType = "modify_timing"
)

// Patch is one structured edit to the script/narration documents. The
// concrete types below form the closed variant set; the applicator dispatches
// on Type exhaustively.
type Patch interface {
	Type() PatchType
	Meta() PatchMeta
}

// PatchMeta carries the fields every patch variant shares.
type PatchMeta struct {
	Reason   string `json:"reason"`
	Priority int    `json:"priority"`
}

// Meta implements Patch for every variant embedding PatchMeta.
func (m PatchMeta) Meta() PatchMeta { return m }

// ModifyScenePatch replaces the value of one field of one scene.
type ModifyScenePatch struct {
	PatchMeta
	SceneID   string `json:"scene_id"`
	FieldName string `json:"field_name"`
	OldValue  string `json:"old_value,omitempty"`
	NewValue  string `json:"new_value"`
}

func (ModifyScenePatch) Type() PatchType { return PatchModifyScene }

// UpdateVisualCuePatch rewrites a scene's visual cue. TriggerSceneRefinement
// tells the applicator to queue the scene for a post-apply refinement pass.
type UpdateVisualCuePatch struct {
	PatchMeta
	SceneID                string           `json:"scene_id"`
	SceneTitle             string           `json:"scene_title"`
	CurrentVisualCue       script.VisualCue `json:"current_visual_cue"`
	NewVisualCue           script.VisualCue `json:"new_visual_cue"`
	TriggerSceneRefinement bool             `json:"trigger_scene_refinement"`
}

func (UpdateVisualCuePatch) Type() PatchType { return PatchUpdateVisualCue }

// AddScenePatch inserts a new scene into both documents.
type AddScenePatch struct {
	PatchMeta
	InsertAfterSceneID string  `json:"insert_after_scene_id,omitempty"`
	NewSceneID         string  `json:"new_scene_id"`
	Title              string  `json:"title"`
	Narration          string  `json:"narration"`
	VisualDescription  string  `json:"visual_description"`
	DurationSeconds    float64 `json:"duration_seconds"`
}

func (AddScenePatch) Type() PatchType { return PatchAddScene }

// RemoveScenePatch deletes a scene from both documents.
type RemoveScenePatch struct {
	PatchMeta
	SceneID string `json:"scene_id"`
}

func (RemoveScenePatch) Type() PatchType { return PatchRemoveScene }

// ReorderScenesPatch rearranges both documents to the given scene order.
type ReorderScenesPatch struct {
	PatchMeta
	NewOrder []string `json:"new_order"`
}

func (ReorderScenesPatch) Type() PatchType { return PatchReorderScenes }

// ModifyTimingPatch records a duration-change request for a scene. It is a
// request-for-review placeholder: the applicator annotates the scene rather
// than resolving the new duration itself.
type ModifyTimingPatch struct {
	PatchMeta
	SceneID           string  `json:"scene_id"`
	CurrentDuration   float64 `json:"current_duration"`
	AdjustmentRequest string  `json:"adjustment_request"`
}

func (ModifyTimingPatch) Type() PatchType { return PatchModifyTiming }

// PatchList is an ordered sequence of patches with tag-dispatched JSON
// encoding: each element serializes flat with an added "patch_type" field.
type PatchList []Patch

// MarshalJSON encodes each patch with its type tag injected.
func (l PatchList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, len(l))
	for i, p := range l {
		body, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, err
		}
		tag, err := json.Marshal(p.Type())
		if err != nil {
			return nil, err
		}
		m["patch_type"] = tag
		if out[i], err = json.Marshal(m); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes each element into its concrete variant by tag.
func (l *PatchList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(PatchList, 0, len(raw))
	for i, r := range raw {
		p, err := decodePatch(r)
		if err != nil {
			return fmt.Errorf("patch %d: %w", i, err)
		}
		out = append(out, p)
	}
	*l = out
	return nil
}

func decodePatch(data []byte) (Patch, error) {
	var head struct {
		Type PatchType `json:"patch_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var p Patch
	switch head.Type {
	case PatchModifyScene:
		p = &ModifyScenePatch{}
	case PatchUpdateVisualCue:
		p = &UpdateVisualCuePatch{}
	case PatchAddScene:
		p = &AddScenePatch{}
	case PatchRemoveScene:
		p = &RemoveScenePatch{}
	case PatchReorderScenes:
		p = &ReorderScenesPatch{}
	case PatchModifyTiming:
		p = &ModifyTimingPatch{}
	default:
		return nil, fmt.Errorf("unknown patch_type %q", head.Type)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}
