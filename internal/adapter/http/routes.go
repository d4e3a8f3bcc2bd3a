package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/adapter/ws"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, hub *ws.Hub) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if hub != nil {
		r.Get("/ws", hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Feedback pipeline
		r.Post("/feedback", h.SubmitFeedback)
		r.Get("/feedback", h.ListFeedback)
		r.Get("/feedback/history", h.GetHistory)
		r.Get("/feedback/{id}", h.GetFeedback)
		r.Post("/feedback/{id}/process", h.ProcessItem)

		// Project documents
		r.Get("/script", h.GetScript)
	})
}
