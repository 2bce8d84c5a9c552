package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/openclaw/qrgen/store"
	"github.com/openclaw/qrgen/studio"
)

// HistoryRecorder returns an OnRender hook that appends every accepted
// render to the generation log.
func HistoryRecorder(h *store.HistoryStore, encoder string, log *slog.Logger) func(string, studio.Request) {
	return func(sessionID string, req studio.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := h.Record(ctx, &store.Generation{
			Session: sessionID,
			Content: req.Text,
			Size:    req.Size,
			Encoder: encoder,
		})
		if err != nil {
			log.Warn("record generation failed", "session", sessionID, "error", err)
		}
	}
}
