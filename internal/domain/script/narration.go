package script

import "encoding/json"

// NarrationScene is one scene record of the narration document. It carries
// the flat narration text; the visual specification lives only in the script.
type NarrationScene struct {
	SceneID         string
	Title           string
	DurationSeconds float64
	Narration       string

	extra map[string]json.RawMessage
}

type narrationSceneJSON struct {
	SceneID         string  `json:"scene_id"`
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
	Narration       string  `json:"narration"`
}

var narrationSceneKnownKeys = []string{"scene_id", "title", "duration_seconds", "narration"}

func (s *NarrationScene) UnmarshalJSON(data []byte) error {
	var a narrationSceneJSON
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, narrationSceneKnownKeys)
	if err != nil {
		return err
	}
	*s = NarrationScene{
		SceneID:         a.SceneID,
		Title:           a.Title,
		DurationSeconds: a.DurationSeconds,
		Narration:       a.Narration,
		extra:           extra,
	}
	return nil
}

func (s NarrationScene) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(narrationSceneJSON{
		SceneID:         s.SceneID,
		Title:           s.Title,
		DurationSeconds: s.DurationSeconds,
		Narration:       s.Narration,
	}, s.extra)
}

// Narration is the narration document: the same scene ordering as the script,
// reduced to what the TTS stage consumes.
type Narration struct {
	Scenes               []NarrationScene
	TotalDurationSeconds float64

	extra map[string]json.RawMessage
}

type narrationJSON struct {
	Scenes               []NarrationScene `json:"scenes"`
	TotalDurationSeconds float64          `json:"total_duration_seconds"`
}

var narrationKnownKeys = []string{"scenes", "total_duration_seconds"}

func (d *Narration) UnmarshalJSON(data []byte) error {
	var a narrationJSON
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, narrationKnownKeys)
	if err != nil {
		return err
	}
	*d = Narration{
		Scenes:               a.Scenes,
		TotalDurationSeconds: a.TotalDurationSeconds,
		extra:                extra,
	}
	return nil
}

func (d Narration) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(narrationJSON{
		Scenes:               d.Scenes,
		TotalDurationSeconds: d.TotalDurationSeconds,
	}, d.extra)
}

// FindScene returns the index of the scene addressed by target, or -1.
func (d *Narration) FindScene(target string) int {
	return findIndex(d.Scenes, narrationSceneKey, target)
}

// RecomputeTotal sets TotalDurationSeconds to the sum of all scene durations.
func (d *Narration) RecomputeTotal() {
	var total float64
	for i := range d.Scenes {
		total += d.Scenes[i].DurationSeconds
	}
	d.TotalDurationSeconds = total
}

// InsertScene mirrors Script.InsertScene for the narration document.
func (d *Narration) InsertScene(sc NarrationScene, afterID string) {
	d.Scenes = insertAfter(d.Scenes, sc, narrationSceneKey, afterID)
	d.RecomputeTotal()
}

// RemoveScene mirrors Script.RemoveScene for the narration document.
func (d *Narration) RemoveScene(target string) bool {
	i := d.FindScene(target)
	if i < 0 {
		return false
	}
	d.Scenes = append(d.Scenes[:i], d.Scenes[i+1:]...)
	d.RecomputeTotal()
	return true
}

// Reorder mirrors Script.Reorder for the narration document.
func (d *Narration) Reorder(order []string) {
	d.Scenes = reorder(d.Scenes, narrationSceneKey, order)
}

func narrationSceneKey(s NarrationScene) (id, title string) { return s.SceneID, s.Title }
