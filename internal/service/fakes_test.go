package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/clipforge/clipforge/internal/domain"
	"github.com/clipforge/clipforge/internal/domain/feedback"
	"github.com/clipforge/clipforge/internal/domain/script"
	"github.com/clipforge/clipforge/internal/port/inspector"
	"github.com/clipforge/clipforge/internal/port/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider routes GenerateJSON through a test-supplied function so each
// test scripts the model's answers by inspecting the prompt.
type fakeProvider struct {
	jsonFn  func(prompt string) (json.RawMessage, error)
	prompts []string
}

func (f *fakeProvider) Generate(_ context.Context, prompt, _ string) (string, error) {
	return "", nil
}

func (f *fakeProvider) GenerateJSON(_ context.Context, prompt, _ string) (json.RawMessage, error) {
	f.prompts = append(f.prompts, prompt)
	if f.jsonFn == nil {
		return nil, nil
	}
	return f.jsonFn(prompt)
}

func (f *fakeProvider) GenerateWithFileAccess(_ context.Context, _, _ string, _ bool) (*llm.FileAccessResult, error) {
	return &llm.FileAccessResult{Success: true}, nil
}

// fakeDocs is an in-memory project store. Loads hand out deep copies via a
// JSON round trip so unsaved mutations never leak back into the store.
type fakeDocs struct {
	script    *script.Script
	narration *script.Narration

	scriptSaves    int
	narrationSaves int
	verifyFail     map[string]bool
}

func (f *fakeDocs) LoadScript(context.Context) (*script.Script, error) {
	if f.script == nil {
		return nil, fmt.Errorf("script: %w", domain.ErrNotFound)
	}
	return copyDoc(f.script)
}

func (f *fakeDocs) SaveScript(_ context.Context, doc *script.Script) error {
	f.scriptSaves++
	f.script = doc
	return nil
}

func (f *fakeDocs) LoadNarration(context.Context) (*script.Narration, error) {
	if f.narration == nil {
		return nil, fmt.Errorf("narration: %w", domain.ErrNotFound)
	}
	return copyDoc(f.narration)
}

func (f *fakeDocs) SaveNarration(_ context.Context, doc *script.Narration) error {
	f.narrationSaves++
	f.narration = doc
	return nil
}

func (f *fakeDocs) VerifyDoc(_ context.Context, name string) (bool, error) {
	if f.verifyFail[name] {
		return false, nil
	}
	return true, nil
}

// fakeInspector records refinement calls and answers from a canned result map.
type fakeInspector struct {
	results map[int]*inspector.RefineResult
	calls   []int
	err     error
}

func (f *fakeInspector) RefineScene(_ context.Context, sceneIndex int) (*inspector.RefineResult, error) {
	f.calls = append(f.calls, sceneIndex)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[sceneIndex]; ok {
		return r, nil
	}
	return &inspector.RefineResult{VerificationPassed: true}, nil
}

// fakeFeedbackStore is an in-memory history with deterministic ids.
type fakeFeedbackStore struct {
	items   []feedback.Item
	updates int
}

func (f *fakeFeedbackStore) AddFeedback(_ context.Context, text string) (*feedback.Item, error) {
	item := feedback.Item{
		ID:           fmt.Sprintf("fb_%04d_%d", len(f.items)+1, 1700000000),
		Timestamp:    time.Unix(1700000000, 0).UTC(),
		FeedbackText: text,
		Status:       feedback.StatusPending,
	}
	f.items = append(f.items, item)
	return &item, nil
}

func (f *fakeFeedbackStore) UpdateItem(_ context.Context, item *feedback.Item) error {
	f.updates++
	for i := range f.items {
		if f.items[i].ID == item.ID {
			f.items[i] = *item
			return nil
		}
	}
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeFeedbackStore) GetItem(_ context.Context, id string) (*feedback.Item, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, fmt.Errorf("feedback %s: %w", id, domain.ErrNotFound)
}

func (f *fakeFeedbackStore) ListAll(context.Context) ([]feedback.Item, error) {
	return append([]feedback.Item(nil), f.items...), nil
}

func (f *fakeFeedbackStore) ListByStatus(_ context.Context, status feedback.Status) ([]feedback.Item, error) {
	var out []feedback.Item
	for _, it := range f.items {
		if it.Status == status {
			out = append(out, it)
		}
	}
	return out, nil
}

func copyDoc[T any](doc *T) (*T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func testScript() *script.Script {
	doc := &script.Script{
		Title: "How Photosynthesis Works",
		Scenes: []script.Scene{
			{
				SceneID:   "scene1",
				SceneType: "hook",
				Title:     "The Hook",
				Voiceover: "Every leaf is a tiny factory.",
				VisualCue: script.VisualCue{
					Description:     "A sunlit leaf zooming into cells",
					VisualType:      "animation",
					Elements:        []string{"leaf", "sun"},
					DurationSeconds: 8,
				},
				DurationSeconds: 8,
			},
			{
				SceneID:   "scene2",
				SceneType: "explanation",
				Title:     "The Discovery",
				Voiceover: "Chloroplasts capture light energy.",
				VisualCue: script.VisualCue{
					Description:     "Diagram of a chloroplast",
					VisualType:      "diagram",
					Elements:        []string{"chloroplast", "light rays"},
					DurationSeconds: 12,
				},
				DurationSeconds: 12,
			},
		},
	}
	doc.RecomputeTotal()
	return doc
}

func testNarration() *script.Narration {
	doc := &script.Narration{
		Scenes: []script.NarrationScene{
			{SceneID: "scene1", Title: "The Hook", DurationSeconds: 8, Narration: "Every leaf is a tiny factory."},
			{SceneID: "scene2", Title: "The Discovery", DurationSeconds: 12, Narration: "Chloroplasts capture light energy."},
		},
	}
	doc.RecomputeTotal()
	return doc
}
