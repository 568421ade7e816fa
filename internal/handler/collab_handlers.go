package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/handler/dto"
	"github.com/mtlprog/missionboard/internal/middleware"
	"github.com/mtlprog/missionboard/internal/service"
)

// handleAddComment adds a comment and fans out mention events.
// @Summary Add comment to task
// @Description Add a comment. Every @handle in the text raises a mention event for that agent, subject to the per-task quota.
// @Tags collaboration
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.CommentRequest true "Comment request"
// @Success 201 {object} dto.CommentResultResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/comments [post]
func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agent, err := middleware.GetAgentFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_SESSION_KEY", "Authentication required")
		return
	}

	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return
	}

	var req dto.CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	result, err := h.collabService.AddComment(ctx, taskID, agent.Name, req.Text)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	resp := dto.CommentResultResponse{
		Comment:  dto.ToCommentResponse(result.Comment),
		Mentions: make([]dto.MentionInfo, len(result.Mentions)),
	}
	for i, m := range result.Mentions {
		resp.Mentions[i] = dto.MentionInfo{
			Handle:  m.Handle,
			EventID: m.EventID,
			Skipped: m.Skipped,
			Reason:  m.Reason,
		}
	}

	respondJSON(w, http.StatusCreated, resp)
}

// handleListComments returns a task's comments oldest first.
// @Summary List task comments
// @Tags collaboration
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} dto.CommentsListResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/comments [get]
func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return
	}

	if _, err := h.taskRepo.GetByID(ctx, taskID); err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	comments, err := h.commentRepo.ListByTask(ctx, taskID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list comments")
		return
	}

	resp := dto.CommentsListResponse{
		Comments: make([]dto.CommentResponse, len(comments)),
		Total:    len(comments),
	}
	for i, c := range comments {
		resp.Comments[i] = dto.ToCommentResponse(c)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleCreateEvent appends an undirected entry to the task's log.
// @Summary Log a collaboration event
// @Description Append a thought_log, design_decision, blocker or status_change note to the task's audit log.
// @Tags collaboration
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.CreateEventRequest true "Event request"
// @Success 201 {object} dto.EventResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/events [post]
func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agent, err := middleware.GetAgentFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_SESSION_KEY", "Authentication required")
		return
	}

	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return
	}

	var req dto.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	var severity *domain.Severity
	if req.Severity != nil {
		s := domain.Severity(*req.Severity)
		severity = &s
	}

	event, err := h.collabService.CreateEvent(ctx, service.CreateEventParams{
		TaskID:   taskID,
		Type:     domain.EventType(req.Type),
		AgentID:  agent.Name,
		Message:  req.Message,
		Severity: severity,
		Metadata: req.Metadata,
	})
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToEventResponse(event))
}

// handleListEvents returns a task's events newest first.
// @Summary List task events
// @Tags collaboration
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} dto.EventsListResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/events [get]
func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return
	}

	if _, err := h.taskRepo.GetByID(ctx, taskID); err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	events, err := h.eventRepo.ListByTask(ctx, taskID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list events")
		return
	}

	resp := dto.EventsListResponse{
		Events: make([]dto.EventResponse, len(events)),
		Total:  len(events),
	}
	for i, e := range events {
		resp.Events[i] = dto.ToEventResponse(e)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleFeed returns the unified comment and event feed, newest first.
// @Summary Unified activity feed
// @Description Merge the task's comments and events into one list, newest first.
// @Tags collaboration
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} dto.FeedResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/feed [get]
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return
	}

	feed, err := h.collabService.UnifiedFeed(ctx, taskID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	resp := dto.FeedResponse{
		Feed:  make([]dto.FeedEntryResponse, len(feed)),
		Total: len(feed),
	}
	for i, entry := range feed {
		resp.Feed[i] = dto.ToFeedEntryResponse(entry)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handlePingAgent raises a directed ping.
// @Summary Ping an agent
// @Description Raise a directed ping, subject to the anti-loop rule and the per-task quota.
// @Tags collaboration
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.PingRequest true "Ping request"
// @Success 201 {object} dto.EventResponse
// @Failure 429 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/ping [post]
func (h *Handler) handlePingAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agent, err := middleware.GetAgentFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_SESSION_KEY", "Authentication required")
		return
	}

	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return
	}

	var req dto.PingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.Target == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "target is required")
		return
	}

	event, err := h.collabService.PingAgent(ctx, taskID, agent.Name, req.Target, req.Message)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToEventResponse(event))
}

// handleRespondToPing acknowledges a ping, once.
// @Summary Respond to a ping
// @Description Acknowledge a ping. A non-empty response is recorded as a comment authored by the ping's target.
// @Tags collaboration
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param request body dto.RespondRequest true "Respond request"
// @Success 200 {object} dto.EventResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /events/{id}/respond [post]
func (h *Handler) handleRespondToPing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID := r.PathValue("id")
	if eventID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "event id is required")
		return
	}

	var req dto.RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	event, err := h.collabService.RespondToPing(ctx, eventID, req.Response)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToEventResponse(event))
}

// handleResolveMention acknowledges a ping or mention without a response.
// @Summary Resolve a mention
// @Description Mark a ping or mention as handled, without a response comment.
// @Tags collaboration
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} dto.EventResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /events/{id}/resolve [post]
func (h *Handler) handleResolveMention(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID := r.PathValue("id")
	if eventID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "event id is required")
		return
	}

	event, err := h.collabService.ResolveMention(ctx, eventID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToEventResponse(event))
}
