package feedbackfile_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clipforge/clipforge/internal/adapter/feedbackfile"
	"github.com/clipforge/clipforge/internal/domain"
	"github.com/clipforge/clipforge/internal/domain/feedback"
)

func newStore(t *testing.T) (*feedbackfile.Store, string) {
	t.Helper()
	dir := t.TempDir()
	return feedbackfile.NewStore(dir, "proj_demo", slog.Default()), dir
}

func TestAddFeedback_AssignsSequentialIDs(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	a, err := s.AddFeedback(ctx, "make the intro punchier")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.AddFeedback(ctx, "slow down scene 3")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(a.ID, "fb_0001_") || !strings.HasPrefix(b.ID, "fb_0002_") {
		t.Fatalf("unexpected ids: %s, %s", a.ID, b.ID)
	}
	if a.ID == b.ID {
		t.Fatal("ids must be unique")
	}
	if a.Status != feedback.StatusPending {
		t.Fatalf("new items must be pending, got %s", a.Status)
	}

	items, err := s.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != a.ID || items[1].ID != b.ID {
		t.Fatalf("insertion order not preserved: %+v", items)
	}
}

func TestAddFeedback_DurableBeforeReturn(t *testing.T) {
	s, dir := newStore(t)

	item, err := s.AddFeedback(context.Background(), "tighten pacing")
	if err != nil {
		t.Fatal(err)
	}

	// A second store over the same directory must already see the item.
	other := feedbackfile.NewStore(dir, "proj_demo", slog.Default())
	got, err := other.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FeedbackText != "tighten pacing" {
		t.Fatalf("unexpected item: %+v", got)
	}
}

func TestCorruptHistoryRecoversEmpty(t *testing.T) {
	s, dir := newStore(t)
	path := filepath.Join(dir, "feedback", "feedback_history.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"items": [{"id":`), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := s.ListAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("corrupt history must read as empty, got %d items", len(items))
	}

	// Counter restarts from 1 on the recovered-empty history.
	item, err := s.AddFeedback(context.Background(), "fresh start")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(item.ID, "fb_0001_") {
		t.Fatalf("unexpected id after recovery: %s", item.ID)
	}
}

func TestUpdateItem_ReplacesByID(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	item, err := s.AddFeedback(ctx, "make scene two clearer")
	if err != nil {
		t.Fatal(err)
	}

	item.Status = feedback.StatusAnalyzing
	item.Intent = feedback.IntentScriptContent
	if err := s.UpdateItem(ctx, item); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != feedback.StatusAnalyzing || got.Intent != feedback.IntentScriptContent {
		t.Fatalf("update not persisted: %+v", got)
	}

	items, err := s.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("update must replace, not append: %d items", len(items))
	}
}

func TestUpdateItem_AppendsWhenAbsent(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	orphan := &feedback.Item{ID: "fb_0042_1700000000", FeedbackText: "imported", Status: feedback.StatusFailed}
	if err := s.UpdateItem(ctx, orphan); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetItem(ctx, orphan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FeedbackText != "imported" {
		t.Fatalf("unexpected item: %+v", got)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.GetItem(context.Background(), "fb_9999_0")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByStatus(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	a, _ := s.AddFeedback(ctx, "one")
	b, _ := s.AddFeedback(ctx, "two")
	_, _ = s.AddFeedback(ctx, "three")

	a.Fail("model unavailable")
	if err := s.UpdateItem(ctx, a); err != nil {
		t.Fatal(err)
	}
	b.Fail("no patches generated")
	if err := s.UpdateItem(ctx, b); err != nil {
		t.Fatal(err)
	}

	failed, err := s.ListByStatus(ctx, feedback.StatusFailed)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 2 || failed[0].ID != a.ID || failed[1].ID != b.ID {
		t.Fatalf("unexpected filtered list: %+v", failed)
	}

	pending, err := s.ListByStatus(ctx, feedback.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending item, got %d", len(pending))
	}
}
