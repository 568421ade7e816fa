package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/missionboard/internal/domain"
)

var notificationColumns = []string{
	"id", "task_id", "type", "status", "task_title", "task_status",
	"assignee_ids", "detected_at", "sent_at", "error_message", "retry_count",
}

// NotificationRepository handles database operations for stuck-task alerts.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID,
		&n.TaskID,
		&n.Type,
		&n.Status,
		&n.TaskTitle,
		&n.TaskStatus,
		&n.AssigneeIDs,
		&n.DetectedAt,
		&n.SentAt,
		&n.ErrorMessage,
		&n.RetryCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	return &n, nil
}

func scanNotifications(rows pgx.Rows) ([]*domain.Notification, error) {
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return notifications, nil
}

// CreatePending inserts a pending alert for a task within the transaction.
// The partial unique index on (task_id) WHERE status='pending' makes this a
// no-op when an active alert already exists; the bool reports whether a row
// was written.
func (r *NotificationRepository) CreatePending(ctx context.Context, tx pgx.Tx, n *domain.Notification) (bool, error) {
	if n.AssigneeIDs == nil {
		n.AssigneeIDs = []string{}
	}

	query, args, err := psql.
		Insert("notifications").
		Columns("task_id", "type", "status", "task_title", "task_status", "assignee_ids", "detected_at", "retry_count").
		Values(
			n.TaskID,
			n.Type,
			domain.NotificationStatusPending,
			n.TaskTitle,
			n.TaskStatus,
			n.AssigneeIDs,
			n.DetectedAt,
			0,
		).
		Suffix("ON CONFLICT (task_id) WHERE status = 'pending' DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build CreatePending query: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&n.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("create pending notification: %w", err)
	}

	n.Status = domain.NotificationStatusPending
	return true, nil
}

// GetByID retrieves a notification by ID.
func (r *NotificationRepository) GetByID(ctx context.Context, notificationID string) (*domain.Notification, error) {
	query, args, err := psql.
		Select(notificationColumns...).
		From("notifications").
		Where(sq.Eq{"id": notificationID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for notification: %w", err)
	}

	return scanNotification(r.pool.QueryRow(ctx, query, args...))
}

// ListByStatus retrieves notifications in a given status, newest first.
func (r *NotificationRepository) ListByStatus(ctx context.Context, status domain.NotificationStatus, limit int) ([]*domain.Notification, error) {
	qb := psql.
		Select(notificationColumns...).
		From("notifications").
		Where(sq.Eq{"status": status}).
		OrderBy("detected_at DESC")

	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByStatus query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}

	return scanNotifications(rows)
}

// HasPendingForTask reports whether a pending alert already exists.
func (r *NotificationRepository) HasPendingForTask(ctx context.Context, taskID string) (bool, error) {
	query, args, err := psql.
		Select("COUNT(*)").
		From("notifications").
		Where(sq.Eq{
			"task_id": taskID,
			"status":  domain.NotificationStatusPending,
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build HasPendingForTask query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("count pending notifications: %w", err)
	}

	return count > 0, nil
}

// MarkSent transitions a notification to sent within the transaction, so
// the status flip commits or rolls back together with the alert event.
func (r *NotificationRepository) MarkSent(ctx context.Context, tx pgx.Tx, notificationID string, at time.Time) error {
	query, args, err := psql.
		Update("notifications").
		Set("status", domain.NotificationStatusSent).
		Set("sent_at", at).
		Where(sq.Eq{"id": notificationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build MarkSent query for notification %s: %w", notificationID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}

	return nil
}

// MarkFailed transitions a notification to failed, recording the error and
// bumping the retry count. Retrying itself is left to an external policy.
func (r *NotificationRepository) MarkFailed(ctx context.Context, notificationID string, errorMessage string) error {
	query, args, err := psql.
		Update("notifications").
		Set("status", domain.NotificationStatusFailed).
		Set("error_message", errorMessage).
		Set("retry_count", sq.Expr("retry_count + 1")).
		Where(sq.Eq{"id": notificationID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build MarkFailed query for notification %s: %w", notificationID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}

	return nil
}

// DeleteSentBefore removes sent notifications detected before the cutoff.
func (r *NotificationRepository) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query, args, err := psql.
		Delete("notifications").
		Where(sq.Eq{"status": domain.NotificationStatusSent}).
		Where(sq.Lt{"detected_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build DeleteSentBefore query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// Stats returns alert counts by status and type.
func (r *NotificationRepository) Stats(ctx context.Context) (*domain.NotificationStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'pending' THEN 1 END),
			COUNT(CASE WHEN status = 'sent' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END),
			COUNT(CASE WHEN type = 'done' THEN 1 END),
			COUNT(CASE WHEN type = 'blocked' THEN 1 END)
		FROM notifications
	`

	var stats domain.NotificationStats
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Sent,
		&stats.Failed,
		&stats.DoneAlerts,
		&stats.BlockedAlerts,
	)
	if err != nil {
		return nil, fmt.Errorf("query notification stats: %w", err)
	}

	return &stats, nil
}
