// Package script defines the script and narration documents of a project.
//
// Both documents are owned by upstream generation stages; this package models
// the fields the revision pipeline understands and round-trips every other
// field untouched, so a full read-modify-write never drops data it cannot
// interpret.
package script

import "encoding/json"

// VisualCue is the script's textual specification of what should appear
// on-screen for a scene, as distinct from its eventual code implementation.
type VisualCue struct {
	Description     string   `json:"description"`
	VisualType      string   `json:"visual_type"`
	Elements        []string `json:"elements"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// Scene is one segment of the script document.
type Scene struct {
	SceneID         string
	SceneType       string
	Title           string
	Voiceover       string
	VisualCue       VisualCue
	DurationSeconds float64
	Notes           string

	extra map[string]json.RawMessage
}

type sceneJSON struct {
	SceneID         string    `json:"scene_id"`
	SceneType       string    `json:"scene_type,omitempty"`
	Title           string    `json:"title"`
	Voiceover       string    `json:"voiceover,omitempty"`
	VisualCue       VisualCue `json:"visual_cue"`
	DurationSeconds float64   `json:"duration_seconds"`
	Notes           string    `json:"notes,omitempty"`
}

var sceneKnownKeys = []string{
	"scene_id", "scene_type", "title", "voiceover", "visual_cue",
	"duration_seconds", "notes",
}

// UnmarshalJSON decodes the known scene fields and stashes everything else.
func (s *Scene) UnmarshalJSON(data []byte) error {
	var a sceneJSON
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, sceneKnownKeys)
	if err != nil {
		return err
	}
	*s = Scene{
		SceneID:         a.SceneID,
		SceneType:       a.SceneType,
		Title:           a.Title,
		Voiceover:       a.Voiceover,
		VisualCue:       a.VisualCue,
		DurationSeconds: a.DurationSeconds,
		Notes:           a.Notes,
		extra:           extra,
	}
	return nil
}

// MarshalJSON re-emits known fields merged with any preserved unknown fields.
func (s Scene) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(sceneJSON{
		SceneID:         s.SceneID,
		SceneType:       s.SceneType,
		Title:           s.Title,
		Voiceover:       s.Voiceover,
		VisualCue:       s.VisualCue,
		DurationSeconds: s.DurationSeconds,
		Notes:           s.Notes,
	}, s.extra)
}

// Script is the full script document: an ordered list of scenes plus an
// aggregate duration maintained by the mutation helpers.
type Script struct {
	Title                string
	TotalDurationSeconds float64
	Scenes               []Scene

	extra map[string]json.RawMessage
}

type scriptJSON struct {
	Title                string  `json:"title"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	Scenes               []Scene `json:"scenes"`
}

var scriptKnownKeys = []string{"title", "total_duration_seconds", "scenes"}

func (d *Script) UnmarshalJSON(data []byte) error {
	var a scriptJSON
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, scriptKnownKeys)
	if err != nil {
		return err
	}
	*d = Script{
		Title:                a.Title,
		TotalDurationSeconds: a.TotalDurationSeconds,
		Scenes:               a.Scenes,
		extra:                extra,
	}
	return nil
}

func (d Script) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(scriptJSON{
		Title:                d.Title,
		TotalDurationSeconds: d.TotalDurationSeconds,
		Scenes:               d.Scenes,
	}, d.extra)
}

// FindScene returns the index of the scene addressed by target, or -1.
// Matching follows the id-or-slug rule (see Matches).
func (d *Script) FindScene(target string) int {
	return findIndex(d.Scenes, sceneKey, target)
}

// RecomputeTotal sets TotalDurationSeconds to the sum of all scene durations.
func (d *Script) RecomputeTotal() {
	var total float64
	for i := range d.Scenes {
		total += d.Scenes[i].DurationSeconds
	}
	d.TotalDurationSeconds = total
}

// InsertScene inserts sc immediately after the scene addressed by afterID,
// or at index 0 when afterID is empty or unresolvable, then recomputes the
// aggregate duration.
func (d *Script) InsertScene(sc Scene, afterID string) {
	d.Scenes = insertAfter(d.Scenes, sc, sceneKey, afterID)
	d.RecomputeTotal()
}

// RemoveScene deletes the scene addressed by target and recomputes the
// aggregate duration. Returns false when no scene matched.
func (d *Script) RemoveScene(target string) bool {
	i := d.FindScene(target)
	if i < 0 {
		return false
	}
	d.Scenes = append(d.Scenes[:i], d.Scenes[i+1:]...)
	d.RecomputeTotal()
	return true
}

// Reorder rearranges scenes to follow order. Scenes not named in order are
// retained and appended at the end rather than dropped.
func (d *Script) Reorder(order []string) {
	d.Scenes = reorder(d.Scenes, sceneKey, order)
}

func sceneKey(s Scene) (id, title string) { return s.SceneID, s.Title }
