package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/missionboard/internal/config"
	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/repository"
)

// TaskService coordinates task operations: status transitions with the
// assignee-based permission model, reassignment, definition approvals and
// manual reordering.
type TaskService struct {
	pool      *pgxpool.Pool
	taskRepo  *repository.TaskRepository
	eventRepo *repository.CollabEventRepository
	rules     *config.Rules
	gate      DeliveryGate
}

// NewTaskService creates a new TaskService.
func NewTaskService(
	pool *pgxpool.Pool,
	taskRepo *repository.TaskRepository,
	eventRepo *repository.CollabEventRepository,
	rules *config.Rules,
) *TaskService {
	return &TaskService{
		pool:      pool,
		taskRepo:  taskRepo,
		eventRepo: eventRepo,
		rules:     rules,
		gate: DeliveryGate{
			QuietHoursStart: rules.QuietHoursStart,
			QuietHoursEnd:   rules.QuietHoursEnd,
			Throttle:        rules.NotificationThrottle,
		},
	}
}

// createEventAndCommit persists a collaboration event within the transaction,
// then commits.
func (s *TaskService) createEventAndCommit(ctx context.Context, tx pgx.Tx, event *domain.CollaborationEvent) error {
	if err := s.eventRepo.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// denyAndLog records a permission_denied audit event, commits it, and returns
// the permission error. Denials are committed on purpose: the audit trail of
// who tried what must survive the rejected operation.
func (s *TaskService) denyAndLog(
	ctx context.Context,
	tx pgx.Tx,
	taskID string,
	requestorID string,
	reason string,
	metadata map[string]any,
) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["reason"] = reason

	event := &domain.CollaborationEvent{
		TaskID:   taskID,
		Type:     domain.EventTypePermissionDenied,
		AgentID:  requestorID,
		Message:  fmt.Sprintf("Permission denied: %s", reason),
		Metadata: metadata,
	}

	if err := s.createEventAndCommit(ctx, tx, event); err != nil {
		return err
	}

	slog.Warn("permission denied",
		"task_id", taskID,
		"agent_id", requestorID,
		"reason", reason,
	)

	return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, reason)
}

// CreateTaskParams holds the fields accepted when creating a task.
type CreateTaskParams struct {
	Title       string
	Description string
	Status      domain.TaskStatus
	AssigneeIDs []string
	ProjectID   *string
	SortOrder   *float64
}

// CreateTask creates a new card. Status defaults to pending.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	if strings.TrimSpace(params.Title) == "" {
		return nil, domain.ErrEmptyTitle
	}
	if params.Status != "" && !params.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, params.Status)
	}

	task := &domain.Task{
		Title:       params.Title,
		Description: params.Description,
		Status:      params.Status,
		AssigneeIDs: normalizeHandles(params.AssigneeIDs),
		ProjectID:   params.ProjectID,
		SortOrder:   params.SortOrder,
	}

	task, err := s.taskRepo.Create(ctx, task)
	if err != nil {
		return nil, err
	}

	slog.Info("task created",
		"task_id", task.ID,
		"title", task.Title,
		"status", task.Status,
	)

	return task, nil
}

// UpdateStatus moves a card between columns. Permission is checked against
// the assignee set; denials are logged to the event log and rejected. Moves
// into done stamp approval, and moves into done/blocked reset the stuck-alert
// bookkeeping and record a notification trigger.
func (s *TaskService) UpdateStatus(
	ctx context.Context,
	taskID string,
	requestorID string,
	newStatus domain.TaskStatus,
) (*domain.CollaborationEvent, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, newStatus)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}

	decision := AuthorizeStatusChange(task, requestorID, s.rules.CoordinatorID)
	if !decision.Allowed {
		return nil, s.denyAndLog(ctx, tx, taskID, requestorID, decision.Reason, map[string]any{
			"attemptedStatus": string(newStatus),
		})
	}

	oldStatus := task.Status
	if !oldStatus.CanTransitionTo(newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, oldStatus, newStatus)
	}

	now := time.Now()
	update := repository.StatusUpdate{NewStatus: newStatus}
	if newStatus == domain.TaskStatusDone {
		update.ApprovedBy = &requestorID
		update.ApprovedAt = &now
	}
	if newStatus.NeedsStuckWatch() {
		// Reset alert bookkeeping so the new done/blocked episode can
		// raise its own alert.
		update.ClearNotification = true
	}

	if err := s.taskRepo.UpdateStatus(ctx, tx, taskID, oldStatus, update); err != nil {
		return nil, err
	}

	if newStatus.NeedsStuckWatch() {
		// Advisory delivery gate, evaluated against the bookkeeping as it
		// was before this transition cleared it. Recorded, never enforced.
		muted := s.gate.InQuietHours(now)
		throttled := s.gate.Throttled(task.NotifiedAt, now)

		trigger := &domain.CollaborationEvent{
			TaskID:  taskID,
			Type:    domain.EventTypeThoughtLog,
			AgentID: s.rules.TriggerAgentID,
			Message: fmt.Sprintf("WhatsApp notification trigger: task %s (muted: %t, throttled: %t)",
				newStatus, muted, throttled),
			Metadata: map[string]any{
				"status":       string(newStatus),
				"muted":        muted,
				"throttled":    throttled,
				"shouldNotify": !muted && !throttled,
			},
		}
		if err := s.eventRepo.Create(ctx, tx, trigger); err != nil {
			return nil, fmt.Errorf("create trigger event: %w", err)
		}
	}

	metadata := map[string]any{
		"oldStatus": string(oldStatus),
		"newStatus": string(newStatus),
	}
	if newStatus == domain.TaskStatusDone {
		metadata["approvedBy"] = requestorID
	}

	event := &domain.CollaborationEvent{
		TaskID:   taskID,
		Type:     domain.EventTypeStatusChange,
		AgentID:  requestorID,
		Message:  fmt.Sprintf("Status changed to %q", newStatus),
		Metadata: metadata,
	}

	if err := s.createEventAndCommit(ctx, tx, event); err != nil {
		return nil, err
	}

	slog.Info("task status changed",
		"task_id", taskID,
		"agent_id", requestorID,
		"old_status", oldStatus,
		"new_status", newStatus,
		"event_id", event.ID,
	)

	return event, nil
}

// UpdateAssignees replaces the assignee set. Coordinator only.
func (s *TaskService) UpdateAssignees(
	ctx context.Context,
	taskID string,
	requestorID string,
	assigneeIDs []string,
) (*domain.CollaborationEvent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if _, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID); err != nil {
		return nil, err
	}

	if requestorID != s.rules.CoordinatorID {
		return nil, s.denyAndLog(ctx, tx, taskID, requestorID,
			"Only the coordinator can reassign tasks.",
			map[string]any{"attemptedAction": "reassign"},
		)
	}

	assignees := normalizeHandles(assigneeIDs)
	if err := s.taskRepo.UpdateAssignees(ctx, tx, taskID, assignees); err != nil {
		return nil, err
	}

	message := "Task unassigned"
	if len(assignees) > 0 {
		message = fmt.Sprintf("Task reassigned to: %s", strings.Join(assignees, ", "))
	}

	event := &domain.CollaborationEvent{
		TaskID:  taskID,
		Type:    domain.EventTypeStatusChange,
		AgentID: requestorID,
		Message: message,
		Metadata: map[string]any{
			"newAssignees": assignees,
		},
	}

	if err := s.createEventAndCommit(ctx, tx, event); err != nil {
		return nil, err
	}

	slog.Info("task reassigned",
		"task_id", taskID,
		"agent_id", requestorID,
		"assignees", assignees,
	)

	return event, nil
}

// ApprovalResult reports the approval list after an AddDefinitionApproval call.
type ApprovalResult struct {
	Approvals       []string
	AlreadyApproved bool
}

// AddDefinitionApproval records an agent's vote that the task definition is
// ready. Coordinator only; repeat votes are a no-op.
func (s *TaskService) AddDefinitionApproval(
	ctx context.Context,
	taskID string,
	requestorID string,
	approverID string,
) (*ApprovalResult, error) {
	approverID = strings.ToLower(approverID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}

	if requestorID != s.rules.CoordinatorID {
		return nil, s.denyAndLog(ctx, tx, taskID, requestorID,
			"Only the coordinator can record definition approvals.",
			map[string]any{"attemptedAction": "approve_definition", "approver": approverID},
		)
	}

	if task.HasDefinitionApproval(approverID) {
		return &ApprovalResult{
			Approvals:       task.DefinitionApprovals,
			AlreadyApproved: true,
		}, nil
	}

	approvals := append(task.DefinitionApprovals, approverID)
	if err := s.taskRepo.UpdateDefinitionApprovals(ctx, tx, taskID, approvals); err != nil {
		return nil, err
	}

	event := &domain.CollaborationEvent{
		TaskID:  taskID,
		Type:    domain.EventTypeStatusChange,
		AgentID: requestorID,
		Message: fmt.Sprintf("%s approved the task definition (%d approvals)", approverID, len(approvals)),
		Metadata: map[string]any{
			"approver":       approverID,
			"approvals":      approvals,
			"approvalsCount": len(approvals),
		},
	}

	if err := s.createEventAndCommit(ctx, tx, event); err != nil {
		return nil, err
	}

	slog.Info("definition approved",
		"task_id", taskID,
		"approver", approverID,
		"approvals_count", len(approvals),
	)

	return &ApprovalResult{Approvals: approvals}, nil
}

// Reorder moves a card to a new manual position. Any agent may reorder;
// ordering is presentation, not state.
func (s *TaskService) Reorder(ctx context.Context, taskID string, sortOrder float64) error {
	if err := s.taskRepo.UpdateSortOrder(ctx, taskID, sortOrder); err != nil {
		return err
	}

	slog.Info("task reordered", "task_id", taskID, "sort_order", sortOrder)
	return nil
}

// normalizeHandles lowercases and deduplicates agent handles, preserving order.
func normalizeHandles(handles []string) []string {
	seen := make(map[string]bool, len(handles))
	normalized := make([]string, 0, len(handles))
	for _, h := range handles {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		normalized = append(normalized, h)
	}
	return normalized
}
