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

// taskColumns is the shared list of columns for task queries.
var taskColumns = []string{
	"id", "title", "description", "status", "assignee_ids", "project_id",
	"sort_order", "approved_by", "approved_at", "definition_approvals",
	"notified_at", "notified_type", "created_at", "updated_at",
}

// TaskRepository handles database operations for tasks.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// scanTask scans a single row into a Task struct.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.AssigneeIDs,
		&task.ProjectID,
		&task.SortOrder,
		&task.ApprovedBy,
		&task.ApprovedAt,
		&task.DefinitionApprovals,
		&task.NotifiedAt,
		&task.NotifiedType,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &task, nil
}

// scanTasks scans multiple rows into a slice of Task structs.
func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// Create creates a new task. Used by setup and the create endpoint.
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if task.AssigneeIDs == nil {
		task.AssigneeIDs = []string{}
	}
	if task.DefinitionApprovals == nil {
		task.DefinitionApprovals = []string{}
	}

	query, args, err := psql.
		Insert("tasks").
		Columns("title", "description", "status", "assignee_ids", "project_id", "sort_order").
		Values(task.Title, task.Description, task.Status, task.AssigneeIDs, task.ProjectID, task.SortOrder).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for task: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return task, nil
}

// GetByID retrieves a task by ID.
func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	return scanTask(r.pool.QueryRow(ctx, query, args...))
}

// GetByIDForUpdate retrieves a task by ID with FOR UPDATE lock (within transaction).
func (r *TaskRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, taskID string) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByIDForUpdate query for task %s: %w", taskID, err)
	}

	return scanTask(tx.QueryRow(ctx, query, args...))
}

// TaskListFilters holds the supported filters for task listing.
type TaskListFilters struct {
	Statuses   []string // Optional: filter by status
	AssigneeID *string  // Optional: tasks whose assignee set contains this handle
}

// List retrieves tasks newest first, optionally filtered.
func (r *TaskRepository) List(ctx context.Context, filters TaskListFilters) ([]*domain.Task, error) {
	qb := psql.Select(taskColumns...).From("tasks")

	if len(filters.Statuses) > 0 {
		qb = qb.Where(sq.Eq{"status": filters.Statuses})
	}
	if filters.AssigneeID != nil {
		qb = qb.Where(sq.Expr("assignee_ids @> ARRAY[?]::text[]", *filters.AssigneeID))
	}

	query, args, err := qb.OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	return scanTasks(rows)
}

// StatusUpdate carries the full write set of a status transition.
type StatusUpdate struct {
	NewStatus domain.TaskStatus

	// Approval stamp, set when the task reaches done.
	ApprovedBy *string
	ApprovedAt *time.Time

	// ClearNotification resets the stuck-alert bookkeeping so a fresh
	// episode can raise a new alert.
	ClearNotification bool
}

// UpdateStatus applies a status transition with optimistic locking on the
// old status. Returns ErrInvalidTransition if the row was modified since it
// was read (oldStatus no longer matches).
func (r *TaskRepository) UpdateStatus(
	ctx context.Context,
	tx pgx.Tx,
	taskID string,
	oldStatus domain.TaskStatus,
	update StatusUpdate,
) error {
	qb := psql.
		Update("tasks").
		Set("status", update.NewStatus).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{
			"id":     taskID,
			"status": oldStatus,
		})

	if update.ApprovedBy != nil {
		qb = qb.Set("approved_by", *update.ApprovedBy).
			Set("approved_at", update.ApprovedAt)
	}
	if update.ClearNotification {
		qb = qb.Set("notified_at", nil).Set("notified_type", nil)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return fmt.Errorf("build UpdateStatus query for task %s: %w", taskID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}

	return nil
}

// UpdateAssignees replaces the assignee set.
func (r *TaskRepository) UpdateAssignees(ctx context.Context, tx pgx.Tx, taskID string, assigneeIDs []string) error {
	if assigneeIDs == nil {
		assigneeIDs = []string{}
	}

	query, args, err := psql.
		Update("tasks").
		Set("assignee_ids", assigneeIDs).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build UpdateAssignees query for task %s: %w", taskID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task assignees: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}

// UpdateSortOrder moves a card to a new manual position.
func (r *TaskRepository) UpdateSortOrder(ctx context.Context, taskID string, sortOrder float64) error {
	query, args, err := psql.
		Update("tasks").
		Set("sort_order", sortOrder).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build UpdateSortOrder query for task %s: %w", taskID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task sort order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}

// UpdateDefinitionApprovals replaces the definition approval voter list.
func (r *TaskRepository) UpdateDefinitionApprovals(ctx context.Context, tx pgx.Tx, taskID string, approvals []string) error {
	query, args, err := psql.
		Update("tasks").
		Set("definition_approvals", approvals).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build UpdateDefinitionApprovals query for task %s: %w", taskID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update definition approvals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}

// MarkNotified records that a stuck alert was raised for the task, within
// the transaction that creates the pending notification.
// Does not touch updated_at: bookkeeping must not reset time-in-status.
func (r *TaskRepository) MarkNotified(ctx context.Context, tx pgx.Tx, taskID string, at time.Time, notifType domain.NotificationType) error {
	query, args, err := psql.
		Update("tasks").
		Set("notified_at", at).
		Set("notified_type", notifType).
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build MarkNotified query for task %s: %w", taskID, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark task notified: %w", err)
	}

	return nil
}
