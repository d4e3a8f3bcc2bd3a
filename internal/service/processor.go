package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/clipforge/clipforge/internal/adapter/otel"
	"github.com/clipforge/clipforge/internal/adapter/ws"
	"github.com/clipforge/clipforge/internal/domain/feedback"
	"github.com/clipforge/clipforge/internal/port/feedbackstore"
	"github.com/clipforge/clipforge/internal/port/messagequeue"
)

const recentHistoryItems = 5

// Processor runs the full feedback pipeline: store, parse, generate, apply.
// Stage failures are folded into the item's status and never surface as
// errors; an error return means infrastructure trouble (store unreachable),
// not a rejected feedback.
type Processor struct {
	store      feedbackstore.Store
	parser     *Parser
	generator  *Generator
	applicator *Applicator

	hub     *ws.Hub
	queue   messagequeue.Queue
	metrics *otel.Metrics

	verifyAfterApply bool
	logger           *slog.Logger
}

// NewProcessor wires the pipeline stages. hub, queue and metrics may each be
// nil; the pipeline then runs without that signal.
func NewProcessor(
	store feedbackstore.Store,
	parser *Parser,
	generator *Generator,
	applicator *Applicator,
	hub *ws.Hub,
	queue messagequeue.Queue,
	metrics *otel.Metrics,
	verifyAfterApply bool,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		store:            store,
		parser:           parser,
		generator:        generator,
		applicator:       applicator,
		hub:              hub,
		queue:            queue,
		metrics:          metrics,
		verifyAfterApply: verifyAfterApply,
		logger:           logger,
	}
}

// Process stores new feedback text and runs it through the pipeline. With
// dryRun set it stops after generation: patches are recorded on the item but
// the project documents are never touched.
func (p *Processor) Process(ctx context.Context, text string, dryRun bool) (*feedback.Item, error) {
	item, err := p.store.AddFeedback(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("store feedback: %w", err)
	}
	p.logger.Info("feedback received", "item_id", item.ID, "dry_run", dryRun)

	if err := p.runFrom(ctx, item, stageParse, dryRun); err != nil {
		return item, err
	}
	return item, nil
}

// ProcessItem resumes a stored item from whichever stage has not produced
// output yet. Terminal items are returned unchanged.
func (p *Processor) ProcessItem(ctx context.Context, id string, dryRun bool) (*feedback.Item, error) {
	item, err := p.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status.Terminal() {
		return item, nil
	}

	start := stageApply
	switch {
	case item.Intent == "":
		start = stageParse
	case len(item.Patches) == 0:
		start = stageGenerate
	}
	p.logger.Info("resuming feedback item", "item_id", item.ID, "status", item.Status)

	if err := p.runFrom(ctx, item, start, dryRun); err != nil {
		return item, err
	}
	return item, nil
}

// GetItem returns a stored item by id.
func (p *Processor) GetItem(ctx context.Context, id string) (*feedback.Item, error) {
	return p.store.GetItem(ctx, id)
}

// ListFeedback returns stored items, optionally filtered by status.
func (p *Processor) ListFeedback(ctx context.Context, status *feedback.Status) ([]feedback.Item, error) {
	if status != nil {
		return p.store.ListByStatus(ctx, *status)
	}
	return p.store.ListAll(ctx)
}

type pipelineStage int

const (
	stageParse pipelineStage = iota
	stageGenerate
	stageApply
)

func (p *Processor) runFrom(ctx context.Context, item *feedback.Item, start pipelineStage, dryRun bool) error {
	if start <= stageParse {
		if err := p.stage(ctx, "parse", item, p.parser.Parse); err != nil {
			return err
		}
		if item.Status == feedback.StatusFailed {
			return nil
		}
	}

	if start <= stageGenerate {
		generate := func(ctx context.Context, it *feedback.Item) error {
			if err := p.generator.Generate(ctx, it); err != nil {
				return err
			}
			if it.Status != feedback.StatusFailed && len(it.Patches) == 0 {
				it.Fail("no patches generated")
			}
			return nil
		}
		if err := p.stage(ctx, "generate", item, generate); err != nil {
			return err
		}
		if item.Status == feedback.StatusFailed {
			return nil
		}
	}

	if dryRun {
		p.logger.Info("dry run complete", "item_id", item.ID, "patches", len(item.Patches))
		return nil
	}

	apply := func(ctx context.Context, it *feedback.Item) error {
		return p.applicator.Apply(ctx, it, p.verifyAfterApply)
	}
	return p.stage(ctx, "apply", item, apply)
}

// stage runs one pipeline stage, persists the item before the pipeline
// advances, and emits the transition to every configured sink.
func (p *Processor) stage(ctx context.Context, name string, item *feedback.Item, fn func(context.Context, *feedback.Item) error) error {
	sctx, span := otel.StartStageSpan(ctx, name, item.ID)
	defer span.End()

	start := time.Now()
	if err := fn(sctx, item); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.StageDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("stage", name)))
	}

	if err := p.store.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("persist %s result: %w", name, err)
	}
	p.announce(ctx, item)
	return nil
}

// announce publishes the item's current state to the websocket hub and the
// message queue, and updates terminal-state metrics.
func (p *Processor) announce(ctx context.Context, item *feedback.Item) {
	if p.hub != nil {
		p.hub.BroadcastEvent(ctx, ws.EventFeedbackStatus, ws.FeedbackStatusEvent{
			ItemID: item.ID,
			Status: string(item.Status),
			Intent: string(item.Intent),
			Error:  item.ErrorMessage,
		})
	}

	if p.queue != nil {
		p.publish(ctx, messagequeue.SubjectFeedbackStatus+"."+string(item.Status), messagequeue.StatusEvent{
			EventID:   uuid.NewString(),
			ItemID:    item.ID,
			Status:    string(item.Status),
			Intent:    string(item.Intent),
			Error:     item.ErrorMessage,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}

	switch item.Status {
	case feedback.StatusApplied:
		if p.metrics != nil {
			p.metrics.ItemsApplied.Add(ctx, 1)
			p.metrics.PatchesApplied.Add(ctx, int64(len(item.Patches)))
			p.metrics.RefinementsRun.Add(ctx, int64(countRefinements(item.Patches)))
			if item.VerificationPassed != nil && !*item.VerificationPassed {
				p.metrics.VerificationFailed.Add(ctx, 1)
			}
		}
		if p.queue != nil {
			p.publish(ctx, messagequeue.SubjectFeedbackApplied, messagequeue.AppliedEvent{
				EventID:            uuid.NewString(),
				ItemID:             item.ID,
				FilesModified:      item.FilesModified,
				VerificationPassed: item.VerificationPassed,
				Timestamp:          time.Now().UTC().Format(time.RFC3339),
			})
		}
	case feedback.StatusFailed:
		if p.metrics != nil {
			p.metrics.ItemsFailed.Add(ctx, 1)
		}
	}
}

func (p *Processor) publish(ctx context.Context, subject string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal queue event", "subject", subject, "error", err)
		return
	}
	if err := p.queue.Publish(ctx, subject, data); err != nil {
		p.logger.Warn("publish queue event", "subject", subject, "error", err)
	}
}

func countRefinements(patches feedback.PatchList) int {
	n := 0
	for _, p := range patches {
		if vc, ok := p.(*feedback.UpdateVisualCuePatch); ok && vc.TriggerSceneRefinement {
			n++
		}
	}
	return n
}

// HistorySummary is the aggregate view of the feedback history.
type HistorySummary struct {
	Total    int                     `json:"total"`
	ByStatus map[feedback.Status]int `json:"by_status"`
	ByIntent map[feedback.Intent]int `json:"by_intent"`
	Recent   []HistoryEntry          `json:"recent"`
}

// HistoryEntry is one recent item, truncated for display.
type HistoryEntry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	FeedbackText string    `json:"feedback_text"`
	Status       string    `json:"status"`
	Intent       string    `json:"intent,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

const historyTextLimit = 80

// GetHistory returns counts by status and intent plus the most recent items.
func (p *Processor) GetHistory(ctx context.Context) (*HistorySummary, error) {
	items, err := p.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	summary := &HistorySummary{
		Total:    len(items),
		ByStatus: make(map[feedback.Status]int),
		ByIntent: make(map[feedback.Intent]int),
	}
	for _, it := range items {
		summary.ByStatus[it.Status]++
		if it.Intent != "" {
			summary.ByIntent[it.Intent]++
		}
	}

	// Most recent first.
	for i := len(items) - 1; i >= 0 && len(summary.Recent) < recentHistoryItems; i-- {
		it := items[i]
		summary.Recent = append(summary.Recent, HistoryEntry{
			ID:           it.ID,
			Timestamp:    it.Timestamp,
			FeedbackText: truncateText(it.FeedbackText, historyTextLimit),
			Status:       string(it.Status),
			Intent:       string(it.Intent),
			ErrorMessage: it.ErrorMessage,
		})
	}
	return summary, nil
}

func truncateText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
