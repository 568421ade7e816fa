package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/missionboard/internal/config"
	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/repository"
)

// NotificationService runs the stuck-task alert pipeline: detection,
// delivery of pending alerts, cleanup and stats.
type NotificationService struct {
	pool      *pgxpool.Pool
	taskRepo  *repository.TaskRepository
	eventRepo *repository.CollabEventRepository
	notifRepo *repository.NotificationRepository
	rules     *config.Rules
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(
	pool *pgxpool.Pool,
	taskRepo *repository.TaskRepository,
	eventRepo *repository.CollabEventRepository,
	notifRepo *repository.NotificationRepository,
	rules *config.Rules,
) *NotificationService {
	return &NotificationService{
		pool:      pool,
		taskRepo:  taskRepo,
		eventRepo: eventRepo,
		notifRepo: notifRepo,
		rules:     rules,
	}
}

// DetectResult summarizes one detector sweep.
type DetectResult struct {
	Scanned         int
	Detected        int
	AlreadyNotified int
	Errors          []string
}

// DetectStuckTasks sweeps done and blocked tasks and raises a pending alert
// for each one sitting in its status past the threshold. Tasks notified
// within twice the threshold are skipped so one episode does not alert
// twice. Per-task failures are accumulated, never aborting the sweep.
func (s *NotificationService) DetectStuckTasks(ctx context.Context) (*DetectResult, error) {
	tasks, err := s.taskRepo.List(ctx, repository.TaskListFilters{
		Statuses: []string{
			string(domain.TaskStatusDone),
			string(domain.TaskStatusBlocked),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list watched tasks: %w", err)
	}

	now := time.Now()
	result := &DetectResult{Scanned: len(tasks)}

	for _, task := range tasks {
		if task.NotifiedAt != nil && now.Sub(*task.NotifiedAt) < 2*s.rules.StuckThreshold {
			result.AlreadyNotified++
			continue
		}
		if task.TimeInStatus(now) < s.rules.StuckThreshold {
			continue
		}

		// Fast path; the partial unique index below is the real guarantee.
		pending, err := s.notifRepo.HasPendingForTask(ctx, task.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", task.ID, err))
			slog.Error("failed to check pending notification", "task_id", task.ID, "error", err)
			continue
		}
		if pending {
			result.AlreadyNotified++
			continue
		}

		created, err := s.raiseAlert(ctx, task, now)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("task %s: %v", task.ID, err))
			slog.Error("failed to raise alert", "task_id", task.ID, "error", err)
			continue
		}
		if !created {
			// Lost the race with a concurrent sweep; the pending alert
			// already exists.
			result.AlreadyNotified++
			continue
		}

		result.Detected++
		slog.Info("stuck task detected",
			"task_id", task.ID,
			"status", task.Status,
		)
	}

	slog.Info("stuck task sweep finished",
		"scanned", result.Scanned,
		"detected", result.Detected,
		"already_notified", result.AlreadyNotified,
		"errors", len(result.Errors),
	)

	return result, nil
}

// raiseAlert creates the pending notification and stamps the task in one
// transaction, so a stamped task always has its pending row and vice versa.
func (s *NotificationService) raiseAlert(ctx context.Context, task *domain.Task, now time.Time) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	notification := &domain.Notification{
		TaskID:      task.ID,
		Type:        notificationTypeFor(task.Status),
		TaskTitle:   task.Title,
		TaskStatus:  task.Status,
		AssigneeIDs: task.AssigneeIDs,
		DetectedAt:  now,
	}

	created, err := s.notifRepo.CreatePending(ctx, tx, notification)
	if err != nil {
		return false, fmt.Errorf("create pending notification: %w", err)
	}
	if !created {
		return false, nil
	}

	if err := s.taskRepo.MarkNotified(ctx, tx, task.ID, now, notification.Type); err != nil {
		return false, fmt.Errorf("mark task notified: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return true, nil
}

// ProcessResult summarizes one processor run.
type ProcessResult struct {
	Processed int
	Failed    int
	Errors    []string
}

// ProcessPending dequeues a batch of pending alerts, posts each one to the
// task's event log as a blocker authored by the alert agent, and marks it
// sent. A failed alert is marked failed and the run continues.
func (s *NotificationService) ProcessPending(ctx context.Context) (*ProcessResult, error) {
	notifications, err := s.notifRepo.ListByStatus(ctx, domain.NotificationStatusPending, s.rules.ProcessBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}

	result := &ProcessResult{}
	if len(notifications) == 0 {
		slog.Info("no pending notifications")
		return result, nil
	}

	for _, n := range notifications {
		if err := s.deliver(ctx, n); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("notification %s: %v", n.ID, err))
			slog.Error("failed to deliver notification", "notification_id", n.ID, "error", err)

			if markErr := s.notifRepo.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
				slog.Error("failed to mark notification failed",
					"notification_id", n.ID,
					"error", markErr,
				)
			}
			continue
		}
		result.Processed++
	}

	slog.Info("processed pending notifications",
		"total", len(notifications),
		"processed", result.Processed,
		"failed", result.Failed,
	)

	return result, nil
}

// deliver posts one alert into the task's event log and marks it sent, both
// in one transaction: the alert event must never outlive a failed status
// flip, or a reprocess would post it twice.
func (s *NotificationService) deliver(ctx context.Context, n *domain.Notification) error {
	message := FormatAlertMessage(n, s.rules.StuckThreshold)

	severity := domain.SeverityMedium
	if n.Type == domain.NotificationTypeBlocked {
		severity = domain.SeverityHigh
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	event := &domain.CollaborationEvent{
		TaskID:   n.TaskID,
		Type:     domain.EventTypeBlocker,
		AgentID:  s.rules.AlertAgentID,
		Message:  fmt.Sprintf("📱 WhatsApp Alert: %s", message),
		Severity: &severity,
		Metadata: map[string]any{
			"notificationId":   n.ID,
			"notificationType": string(n.Type),
			"taskTitle":        n.TaskTitle,
		},
	}

	if err := s.eventRepo.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("create alert event: %w", err)
	}
	if err := s.notifRepo.MarkSent(ctx, tx, n.ID, time.Now()); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("notification sent",
		"notification_id", n.ID,
		"task_id", n.TaskID,
		"type", n.Type,
	)

	return nil
}

// SendAlert renders and logs the alert text for a single notification.
// Delivery is a stub: the message is written to the log and returned, not
// pushed to an external channel.
func (s *NotificationService) SendAlert(ctx context.Context, notificationID string) (string, error) {
	n, err := s.notifRepo.GetByID(ctx, notificationID)
	if err != nil {
		return "", err
	}

	message := FormatAlertMessage(n, s.rules.StuckThreshold)

	slog.Info("whatsapp alert",
		"notification_id", n.ID,
		"task_id", n.TaskID,
		"message", message,
	)

	return message, nil
}

// CleanupOld deletes sent notifications older than the given age. A
// non-positive age falls back to the configured default.
func (s *NotificationService) CleanupOld(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = s.rules.CleanupAge
	}

	deleted, err := s.notifRepo.DeleteSentBefore(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	slog.Info("cleaned up notifications",
		"deleted", deleted,
		"older_than", olderThan,
	)

	return deleted, nil
}

// Stats returns alert counts by status and type.
func (s *NotificationService) Stats(ctx context.Context) (*domain.NotificationStats, error) {
	return s.notifRepo.Stats(ctx)
}

func notificationTypeFor(status domain.TaskStatus) domain.NotificationType {
	if status == domain.TaskStatusBlocked {
		return domain.NotificationTypeBlocked
	}
	return domain.NotificationTypeDone
}
