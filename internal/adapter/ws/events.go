package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventFeedbackStatus  = "feedback.status"
	EventPatchApplied    = "feedback.patch"
	EventSceneRefinement = "feedback.refinement"
)

// FeedbackStatusEvent is broadcast on every feedback item status transition.
type FeedbackStatusEvent struct {
	ItemID string `json:"item_id"`
	Status string `json:"status"`
	Intent string `json:"intent,omitempty"`
	Error  string `json:"error,omitempty"`
}

// PatchAppliedEvent is broadcast as each patch lands on the documents.
type PatchAppliedEvent struct {
	ItemID    string `json:"item_id"`
	PatchType string `json:"patch_type"`
	SceneID   string `json:"scene_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// SceneRefinementEvent is broadcast per scene in the post-apply refinement pass.
type SceneRefinementEvent struct {
	ItemID             string   `json:"item_id"`
	SceneID            string   `json:"scene_id"`
	SceneTitle         string   `json:"scene_title"`
	VerificationPassed bool     `json:"verification_passed"`
	IssuesFound        []string `json:"issues_found,omitempty"`
	FixesApplied       []string `json:"fixes_applied,omitempty"`
}

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
