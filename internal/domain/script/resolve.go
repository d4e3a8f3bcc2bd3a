package script

import (
	"encoding/json"
	"strings"
)

// Slugify derives an identifier-safe key from a scene title: case-folded,
// whitespace and hyphens become underscores, other non-alphanumerics are
// stripped, runs of underscores collapse to one.
func Slugify(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
			pendingSep = false
		case r == ' ' || r == '\t' || r == '-' || r == '_':
			pendingSep = true
		}
	}
	return b.String()
}

// Matches reports whether a scene with the given literal id and title is
// addressed by target. Structural stages assign numeric ids while
// feedback-driven stages reference title slugs, so both are accepted.
func Matches(sceneID, title, target string) bool {
	if target == "" {
		return false
	}
	return sceneID == target || Slugify(title) == target
}

func findIndex[T any](scenes []T, key func(T) (id, title string), target string) int {
	for i := range scenes {
		id, title := key(scenes[i])
		if Matches(id, title, target) {
			return i
		}
	}
	return -1
}

func insertAfter[T any](scenes []T, sc T, key func(T) (id, title string), afterID string) []T {
	at := 0
	if afterID != "" {
		if i := findIndex(scenes, key, afterID); i >= 0 {
			at = i + 1
		}
	}
	out := make([]T, 0, len(scenes)+1)
	out = append(out, scenes[:at]...)
	out = append(out, sc)
	out = append(out, scenes[at:]...)
	return out
}

// reorder rebuilds scenes in the given order; any scene not named is kept and
// appended at the end so a partial order never loses data.
func reorder[T any](scenes []T, key func(T) (id, title string), order []string) []T {
	taken := make([]bool, len(scenes))
	out := make([]T, 0, len(scenes))
	for _, target := range order {
		for i := range scenes {
			if taken[i] {
				continue
			}
			id, title := key(scenes[i])
			if Matches(id, title, target) {
				out = append(out, scenes[i])
				taken[i] = true
				break
			}
		}
	}
	for i := range scenes {
		if !taken[i] {
			out = append(out, scenes[i])
		}
	}
	return out
}

// splitExtra returns the top-level fields of data that are not in known,
// or nil when there are none.
func splitExtra(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// marshalWithExtra marshals v and merges preserved unknown fields back in.
// Known fields win on key collisions.
func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return json.Marshal(m)
}
