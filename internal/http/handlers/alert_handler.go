// README: Operator alert handlers.
package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"saferide/internal/modules/monitor"
	"saferide/internal/types"
)

type Alerts interface {
	ListByChapter(ctx context.Context, chapterID types.ID) ([]monitor.Alert, error)
	MarkRead(ctx context.Context, id types.ID) error
}

type AlertHandler struct {
	alerts Alerts
	logger *zap.Logger
}

func NewAlertHandler(alerts Alerts, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

func (h *AlertHandler) ListByChapter(w http.ResponseWriter, r *http.Request) {
	chapterID := r.PathValue("chapterId")
	if chapterID == "" {
		writeError(w, http.StatusBadRequest, "missing chapter id")
		return
	}
	alerts, err := h.alerts.ListByChapter(r.Context(), types.ID(chapterID))
	if err != nil {
		h.logger.Error("list alerts failed", zap.String("chapter_id", chapterID), zap.Error(err))
		writeDomainError(w, err)
		return
	}
	if alerts == nil {
		alerts = []monitor.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	alertID := r.PathValue("alertId")
	if alertID == "" {
		writeError(w, http.StatusBadRequest, "missing alert id")
		return
	}
	if err := h.alerts.MarkRead(r.Context(), types.ID(alertID)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
