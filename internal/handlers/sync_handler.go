package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/scalesync/server/internal/models"
	"github.com/scalesync/server/internal/repository"
	"github.com/scalesync/server/internal/services"
)

// SyncHandler handles the sync trigger and status endpoints
type SyncHandler struct {
	runner    services.SyncRunner
	scheduler *services.SchedulerService
	history   repository.SyncHistoryRepo
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(runner services.SyncRunner, scheduler *services.SchedulerService, history repository.SyncHistoryRepo) *SyncHandler {
	return &SyncHandler{
		runner:    runner,
		scheduler: scheduler,
		history:   history,
	}
}

// TriggerSync runs one sync attempt synchronously
// @Summary Trigger a sync
// @Description Runs one Wyze-to-Garmin sync attempt and returns its terminal result
// @Tags sync
// @Produce json
// @Success 200 {object} models.SyncResult "Sync succeeded or found nothing new"
// @Failure 500 {object} models.SyncResult "Sync failed"
// @Router /webhook/sync [post]
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result := h.runner.Run(r.Context(), models.TriggerWebhook)

	status := http.StatusOK
	if !result.Succeeded() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

// GetStatus returns the scheduler state and the last recorded attempt
// @Summary Get sync status
// @Tags sync
// @Produce json
// @Success 200 {object} models.SyncStatusResponse
// @Router /api/sync/status [get]
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := models.SyncStatusResponse{}

	if h.scheduler != nil {
		enabled, _, _ := h.scheduler.Status()
		resp.SchedulerEnabled = enabled
		if next, ok := h.scheduler.NextRun(); ok {
			resp.NextScheduledRun = &next
		}
	}

	if h.history != nil {
		last, err := h.history.Last(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load sync history"})
			return
		}
		resp.LastResult = last
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetHistory returns recent sync attempts, newest first
// @Summary List recent sync attempts
// @Tags sync
// @Produce json
// @Param limit query int false "Maximum attempts to return (default 20, max 100)"
// @Success 200 {object} models.SyncHistoryResponse
// @Router /api/sync/history [get]
func (h *SyncHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}

	attempts, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load sync history"})
		return
	}
	if attempts == nil {
		attempts = []*models.SyncAttempt{}
	}
	writeJSON(w, http.StatusOK, models.SyncHistoryResponse{Attempts: attempts})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
