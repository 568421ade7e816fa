package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/handler/dto"
)

// handleListNotifications returns stuck-task alerts filtered by status.
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Param status query string false "Filter by status: pending, sent or failed (default pending)"
// @Param limit query int false "Max rows (default all)"
// @Success 200 {object} dto.NotificationsListResponse
// @Security BearerAuth
// @Router /notifications [get]
func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := domain.NotificationStatusPending
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status = domain.NotificationStatus(statusParam)
		if status != domain.NotificationStatusPending &&
			status != domain.NotificationStatusSent &&
			status != domain.NotificationStatusFailed {
			respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status filter")
			return
		}
	}

	notifications, err := h.notifRepo.ListByStatus(ctx, status, 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list notifications")
		return
	}

	resp := dto.NotificationsListResponse{
		Notifications: make([]dto.NotificationResponse, len(notifications)),
		Total:         len(notifications),
	}
	for i, n := range notifications {
		resp.Notifications[i] = dto.ToNotificationResponse(n)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleDetectStuck runs one stuck-task detector sweep.
// @Summary Detect stuck tasks
// @Description Sweep done and blocked tasks and raise a pending alert for each one over the threshold.
// @Tags notifications
// @Produce json
// @Success 200 {object} dto.DetectResponse
// @Security BearerAuth
// @Router /notifications/detect [post]
func (h *Handler) handleDetectStuck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.notificationService.DetectStuckTasks(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Detector sweep failed")
		return
	}

	respondJSON(w, http.StatusOK, dto.DetectResponse{
		Scanned:         result.Scanned,
		Detected:        result.Detected,
		AlreadyNotified: result.AlreadyNotified,
		Errors:          result.Errors,
	})
}

// handleProcessNotifications delivers a batch of pending alerts.
// @Summary Process pending notifications
// @Description Dequeue a batch of pending alerts, post each into the task's event log and mark it sent.
// @Tags notifications
// @Produce json
// @Success 200 {object} dto.ProcessResponse
// @Security BearerAuth
// @Router /notifications/process [post]
func (h *Handler) handleProcessNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.notificationService.ProcessPending(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Processor run failed")
		return
	}

	respondJSON(w, http.StatusOK, dto.ProcessResponse{
		Processed: result.Processed,
		Failed:    result.Failed,
		Errors:    result.Errors,
	})
}

// handleSendAlert renders the alert text for one notification.
// @Summary Render an alert
// @Description Render and log the WhatsApp-style alert text. Delivery is a stub.
// @Tags notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} dto.SendAlertResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /notifications/{id}/send [post]
func (h *Handler) handleSendAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	notificationID := r.PathValue("id")
	if notificationID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "notification id is required")
		return
	}

	message, err := h.notificationService.SendAlert(ctx, notificationID)
	if err != nil {
		status, code, msg := dto.MapDomainError(err)
		respondError(w, status, code, msg)
		return
	}

	respondJSON(w, http.StatusOK, dto.SendAlertResponse{
		NotificationID: notificationID,
		Message:        message,
	})
}

// handleCleanupNotifications deletes old sent notifications.
// @Summary Clean up notifications
// @Description Delete sent notifications older than the given age (default 24h).
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body dto.CleanupRequest false "Cleanup request"
// @Success 200 {object} dto.CleanupResponse
// @Security BearerAuth
// @Router /notifications/cleanup [post]
func (h *Handler) handleCleanupNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var olderThan time.Duration
	if r.Body != nil && r.ContentLength != 0 {
		var req dto.CleanupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
			return
		}
		if req.OlderThanHours != nil {
			olderThan = time.Duration(*req.OlderThanHours) * time.Hour
		}
	}

	deleted, err := h.notificationService.CleanupOld(ctx, olderThan)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Cleanup failed")
		return
	}

	respondJSON(w, http.StatusOK, dto.CleanupResponse{Deleted: deleted})
}

// handleNotificationStats returns alert counts by status and type.
// @Summary Notification stats
// @Tags notifications
// @Produce json
// @Success 200 {object} dto.StatsResponse
// @Security BearerAuth
// @Router /notifications/stats [get]
func (h *Handler) handleNotificationStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.notificationService.Stats(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch stats")
		return
	}

	respondJSON(w, http.StatusOK, dto.ToStatsResponse(stats))
}
