package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/handler/dto"
	"github.com/mtlprog/missionboard/internal/middleware"
	"github.com/mtlprog/missionboard/internal/repository"
	"github.com/mtlprog/missionboard/internal/service"
)

// handleCreateTask creates a new task.
// @Summary Create a new task
// @Description Creates a new card. Status defaults to pending.
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body dto.CreateTaskRequest true "Task creation request"
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := middleware.GetAgentFromContext(ctx); err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_SESSION_KEY", "Authentication required")
		return
	}

	var req dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(ctx, service.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TaskStatus(req.Status),
		AssigneeIDs: req.AssigneeIDs,
		ProjectID:   req.ProjectID,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusCreated, dto.ToTaskResponse(task))
}

// handleListTasks returns a list of tasks with filters.
// @Summary List tasks
// @Description Get tasks, optionally filtered by status and assignee
// @Tags tasks
// @Produce json
// @Param status query string false "Comma-separated statuses: pending,blocked"
// @Param assignee query string false "Filter by assignee handle, or 'me'"
// @Success 200 {object} dto.TasksListResponse
// @Security BearerAuth
// @Router /tasks [get]
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	agent, err := middleware.GetAgentFromContext(ctx)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "INVALID_SESSION_KEY", "Authentication required")
		return
	}

	query := r.URL.Query()

	var statuses []string
	if statusParam := query.Get("status"); statusParam != "" {
		for _, s := range splitAndTrim(statusParam, ",") {
			if !domain.TaskStatus(s).IsValid() {
				respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status filter: "+s)
				return
			}
			statuses = append(statuses, s)
		}
	}

	var assigneeID *string
	if assigneeParam := query.Get("assignee"); assigneeParam != "" {
		if assigneeParam == "me" {
			assigneeID = &agent.Name
		} else {
			handle := strings.ToLower(assigneeParam)
			assigneeID = &handle
		}
	}

	tasks, err := h.taskRepo.List(ctx, repository.TaskListFilters{
		Statuses:   statuses,
		AssigneeID: assigneeID,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tasks")
		return
	}

	resp := dto.TasksListResponse{
		Tasks: make([]dto.TaskResponse, len(tasks)),
		Total: len(tasks),
	}
	for i, task := range tasks {
		resp.Tasks[i] = dto.ToTaskResponse(task)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleGetTask retrieves a task with its unified activity feed.
// @Summary Get task details
// @Description Get a card plus its merged comment and event feed
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} dto.TaskDetailResponse
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return
	}

	task, err := h.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	feed, err := h.collabService.UnifiedFeed(ctx, taskID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch feed")
		return
	}

	resp := dto.TaskDetailResponse{
		Task: dto.ToTaskResponse(task),
		Feed: make([]dto.FeedEntryResponse, len(feed)),
	}
	for i, entry := range feed {
		resp.Feed[i] = dto.ToFeedEntryResponse(entry)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleUpdateStatus changes task status.
// @Summary Update task status
// @Description Move a card between columns. Permission follows the assignee set; denials are logged to the event log.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.UpdateStatusRequest true "Status update request"
// @Success 200 {object} dto.EventResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/status [patch]
func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	var req dto.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.Status == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status is required")
		return
	}

	event, err := h.taskService.UpdateStatus(ctx, taskID, agent.Name, domain.TaskStatus(req.Status))
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToEventResponse(event))
}

// handleUpdateAssignees replaces the assignee set.
// @Summary Reassign a task
// @Description Replace the assignee set. Coordinator only.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.UpdateAssigneesRequest true "Assignees update request"
// @Success 200 {object} dto.EventResponse
// @Failure 403 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/assignees [patch]
func (h *Handler) handleUpdateAssignees(w http.ResponseWriter, r *http.Request) {
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

	var req dto.UpdateAssigneesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	event, err := h.taskService.UpdateAssignees(ctx, taskID, agent.Name, req.AssigneeIDs)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToEventResponse(event))
}

// handleReorder moves a card to a new manual position.
// @Summary Reorder a task
// @Description Set the card's manual sort position. Any agent may reorder.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.ReorderRequest true "Reorder request"
// @Success 204 "No Content"
// @Failure 404 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/order [patch]
func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID := r.PathValue("id")
	if taskID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "task id is required")
		return
	}

	var req dto.ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.SortOrder == nil {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sort_order is required")
		return
	}

	if err := h.taskService.Reorder(ctx, taskID, *req.SortOrder); err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAddApproval records a definition approval vote.
// @Summary Approve task definition
// @Description Record an agent's vote that the task definition is ready. Coordinator only; repeat votes are a no-op.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.ApprovalRequest true "Approval request"
// @Success 200 {object} dto.ApprovalResponse
// @Failure 403 {object} dto.ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id}/approvals [post]
func (h *Handler) handleAddApproval(w http.ResponseWriter, r *http.Request) {
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

	var req dto.ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.Approver == "" {
		respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "approver is required")
		return
	}

	result, err := h.taskService.AddDefinitionApproval(ctx, taskID, agent.Name, req.Approver)
	if err != nil {
		status, code, message := dto.MapDomainError(err)
		respondError(w, status, code, message)
		return
	}

	respondJSON(w, http.StatusOK, dto.ApprovalResponse{
		Approvals:       result.Approvals,
		AlreadyApproved: result.AlreadyApproved,
	})
}

// splitAndTrim splits a string by delimiter and trims whitespace.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
