package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipforge/clipforge/internal/domain"
	"github.com/clipforge/clipforge/internal/domain/feedback"
)

// Store implements the feedback history store on PostgreSQL. Items are rows
// instead of one JSON document; insertion order is the serial sequence.
type Store struct {
	pool      *pgxpool.Pool
	projectID string
	now       func() time.Time
}

// NewStore creates a feedback store for one project backed by the given pool.
func NewStore(pool *pgxpool.Pool, projectID string) *Store {
	return &Store{pool: pool, projectID: projectID, now: time.Now}
}

// AddFeedback creates a new pending item. The id counter is the project's
// current item count plus one, taken inside the insert transaction.
func (s *Store) AddFeedback(ctx context.Context, text string) (*feedback.Item, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM feedback_items WHERE project_id = $1`, s.projectID,
	).Scan(&count); err != nil {
		return nil, fmt.Errorf("count feedback items: %w", err)
	}

	item := feedback.Item{
		ID:           fmt.Sprintf("fb_%04d_%d", count+1, s.now().Unix()),
		Timestamp:    s.now().UTC(),
		FeedbackText: text,
		Status:       feedback.StatusPending,
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO feedback_items (id, project_id, submitted_at, feedback_text, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		item.ID, s.projectID, item.Timestamp, item.FeedbackText, string(item.Status),
	); err != nil {
		return nil, fmt.Errorf("insert feedback item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit feedback item: %w", err)
	}
	return &item, nil
}

// UpdateItem replaces the stored item with a matching id, inserting if absent.
func (s *Store) UpdateItem(ctx context.Context, item *feedback.Item) error {
	subIntents, target, patches, files, err := marshalItemColumns(item)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO feedback_items
		   (id, project_id, submitted_at, feedback_text, status, intent, sub_intents,
		    target, interpretation, patches, files_modified, verification_passed, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   intent = EXCLUDED.intent,
		   sub_intents = EXCLUDED.sub_intents,
		   target = EXCLUDED.target,
		   interpretation = EXCLUDED.interpretation,
		   patches = EXCLUDED.patches,
		   files_modified = EXCLUDED.files_modified,
		   verification_passed = EXCLUDED.verification_passed,
		   error_message = EXCLUDED.error_message,
		   updated_at = now()`,
		item.ID, s.projectID, item.Timestamp, item.FeedbackText, string(item.Status),
		string(item.Intent), subIntents, target, item.Interpretation, patches, files,
		item.VerificationPassed, item.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("upsert feedback item %s: %w", item.ID, err)
	}
	return nil
}

// GetItem returns the item with the given id.
func (s *Store) GetItem(ctx context.Context, id string) (*feedback.Item, error) {
	row := s.pool.QueryRow(ctx, selectItem+` WHERE id = $1 AND project_id = $2`, id, s.projectID)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("feedback item %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get feedback item %s: %w", id, err)
	}
	return &item, nil
}

// ListAll returns every item in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]feedback.Item, error) {
	rows, err := s.pool.Query(ctx, selectItem+` WHERE project_id = $1 ORDER BY seq ASC`, s.projectID)
	if err != nil {
		return nil, fmt.Errorf("list feedback items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// ListByStatus returns the items with the given status, in insertion order.
func (s *Store) ListByStatus(ctx context.Context, status feedback.Status) ([]feedback.Item, error) {
	rows, err := s.pool.Query(ctx,
		selectItem+` WHERE project_id = $1 AND status = $2 ORDER BY seq ASC`,
		s.projectID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list feedback items by status: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

const selectItem = `
	SELECT id, submitted_at, feedback_text, status, intent, sub_intents, target,
	       interpretation, patches, files_modified, verification_passed, error_message
	FROM feedback_items`

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (feedback.Item, error) {
	var it feedback.Item
	var status, intent string
	var subIntents, target, patches, files []byte

	err := row.Scan(&it.ID, &it.Timestamp, &it.FeedbackText, &status, &intent,
		&subIntents, &target, &it.Interpretation, &patches, &files,
		&it.VerificationPassed, &it.ErrorMessage)
	if err != nil {
		return it, err
	}

	it.Status = feedback.Status(status)
	it.Intent = feedback.Intent(intent)
	if subIntents != nil {
		if err := json.Unmarshal(subIntents, &it.SubIntents); err != nil {
			return it, fmt.Errorf("unmarshal sub_intents: %w", err)
		}
	}
	if target != nil {
		var tg feedback.Target
		if err := json.Unmarshal(target, &tg); err != nil {
			return it, fmt.Errorf("unmarshal target: %w", err)
		}
		it.Target = &tg
	}
	if patches != nil {
		if err := json.Unmarshal(patches, &it.Patches); err != nil {
			return it, fmt.Errorf("unmarshal patches: %w", err)
		}
	}
	if files != nil {
		if err := json.Unmarshal(files, &it.FilesModified); err != nil {
			return it, fmt.Errorf("unmarshal files_modified: %w", err)
		}
	}
	return it, nil
}

func scanItems(rows pgx.Rows) ([]feedback.Item, error) {
	var items []feedback.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func marshalItemColumns(item *feedback.Item) (subIntents, target, patches, files []byte, err error) {
	if len(item.SubIntents) > 0 {
		if subIntents, err = json.Marshal(item.SubIntents); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal sub_intents: %w", err)
		}
	}
	if item.Target != nil {
		if target, err = json.Marshal(item.Target); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal target: %w", err)
		}
	}
	if len(item.Patches) > 0 {
		if patches, err = json.Marshal(item.Patches); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal patches: %w", err)
		}
	}
	if len(item.FilesModified) > 0 {
		if files, err = json.Marshal(item.FilesModified); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal files_modified: %w", err)
		}
	}
	return subIntents, target, patches, files, nil
}
