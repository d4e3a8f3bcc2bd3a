// Package feedbackfile implements the feedback history store as a single
// JSON file under the project directory.
package feedbackfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/domain"
	"github.com/clipforge/clipforge/internal/domain/feedback"
)

// HistoryFile is the history document's path relative to the project root.
const HistoryFile = "feedback/feedback_history.json"

// Store persists the feedback history as one JSON document. Every mutation is
// a full read-modify-write; nothing is cached between calls, so concurrent
// processes see each other's writes (last write wins).
type Store struct {
	mu        sync.Mutex
	path      string
	projectID string
	logger    *slog.Logger
	now       func() time.Time
}

// NewStore creates a history store for the project rooted at dir.
func NewStore(dir, projectID string, logger *slog.Logger) *Store {
	return &Store{
		path:      filepath.Join(dir, filepath.FromSlash(HistoryFile)),
		projectID: projectID,
		logger:    logger,
		now:       time.Now,
	}
}

// AddFeedback creates a new pending item and durably stores it before
// returning.
func (s *Store) AddFeedback(ctx context.Context, text string) (*feedback.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.load(ctx)
	item := feedback.Item{
		ID:           fmt.Sprintf("fb_%04d_%d", len(hist.Items)+1, s.now().Unix()),
		Timestamp:    s.now().UTC(),
		FeedbackText: text,
		Status:       feedback.StatusPending,
	}
	hist.Items = append(hist.Items, item)

	if err := s.save(hist); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem replaces the stored item with a matching id, appending if absent.
func (s *Store) UpdateItem(ctx context.Context, item *feedback.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.load(ctx)
	replaced := false
	for i := range hist.Items {
		if hist.Items[i].ID == item.ID {
			hist.Items[i] = *item
			replaced = true
			break
		}
	}
	if !replaced {
		hist.Items = append(hist.Items, *item)
	}
	return s.save(hist)
}

// GetItem returns the item with the given id.
func (s *Store) GetItem(ctx context.Context, id string) (*feedback.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.load(ctx)
	for i := range hist.Items {
		if hist.Items[i].ID == id {
			item := hist.Items[i]
			return &item, nil
		}
	}
	return nil, fmt.Errorf("feedback item %s: %w", id, domain.ErrNotFound)
}

// ListAll returns every item in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]feedback.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.load(ctx)
	items := make([]feedback.Item, len(hist.Items))
	copy(items, hist.Items)
	return items, nil
}

// ListByStatus returns the items with the given status, in insertion order.
func (s *Store) ListByStatus(ctx context.Context, status feedback.Status) ([]feedback.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.load(ctx)
	var items []feedback.Item
	for _, it := range hist.Items {
		if it.Status == status {
			items = append(items, it)
		}
	}
	return items, nil
}

// load reads the history file. A missing or corrupt file yields an empty
// history: the feedback log is a convenience record, so availability beats
// strict auditability here.
func (s *Store) load(_ context.Context) *feedback.History {
	empty := &feedback.History{ProjectID: s.projectID}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("unreadable feedback history, starting empty", "path", s.path, "error", err)
		}
		return empty
	}

	var hist feedback.History
	if err := json.Unmarshal(data, &hist); err != nil {
		s.logger.Warn("corrupt feedback history, starting empty", "path", s.path, "error", err)
		return empty
	}
	if hist.ProjectID == "" {
		hist.ProjectID = s.projectID
	}
	return &hist
}

func (s *Store) save(hist *feedback.History) error {
	data, err := json.MarshalIndent(hist, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feedback history: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "history.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write feedback history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close feedback history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace feedback history: %w", err)
	}
	return nil
}
