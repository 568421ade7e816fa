package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/missionboard/internal/domain"
)

var eventColumns = []string{
	"id", "task_id", "type", "agent_id", "target_agent_id", "message",
	"severity", "metadata", "responded", "responded_at", "created_at",
}

// CollabEventRepository handles database operations for collaboration events.
type CollabEventRepository struct {
	pool *pgxpool.Pool
}

// NewCollabEventRepository creates a new CollabEventRepository.
func NewCollabEventRepository(pool *pgxpool.Pool) *CollabEventRepository {
	return &CollabEventRepository{pool: pool}
}

func scanEvent(row pgx.Row) (*domain.CollaborationEvent, error) {
	var event domain.CollaborationEvent
	var metadataJSON []byte

	err := row.Scan(
		&event.ID,
		&event.TaskID,
		&event.Type,
		&event.AgentID,
		&event.TargetAgentID,
		&event.Message,
		&event.Severity,
		&metadataJSON,
		&event.Responded,
		&event.RespondedAt,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
			return nil, fmt.Errorf("parse event metadata: %w", err)
		}
	}

	return &event, nil
}

func scanEvents(rows pgx.Rows) ([]*domain.CollaborationEvent, error) {
	defer rows.Close()

	var events []*domain.CollaborationEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return events, nil
}

// Create appends an event to the log within a transaction.
func (r *CollabEventRepository) Create(ctx context.Context, tx pgx.Tx, event *domain.CollaborationEvent) error {
	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
	}

	query, args, err := psql.
		Insert("collaboration_events").
		Columns("task_id", "type", "agent_id", "target_agent_id", "message", "severity", "metadata", "responded").
		Values(
			event.TaskID,
			event.Type,
			event.AgentID,
			event.TargetAgentID,
			event.Message,
			event.Severity,
			metadataJSON,
			event.Responded,
		).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for event: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	return nil
}

// GetByIDForUpdate retrieves an event with a row lock (within transaction).
func (r *CollabEventRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, eventID string) (*domain.CollaborationEvent, error) {
	query, args, err := psql.
		Select(eventColumns...).
		From("collaboration_events").
		Where(sq.Eq{"id": eventID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByIDForUpdate query for event %s: %w", eventID, err)
	}

	return scanEvent(tx.QueryRow(ctx, query, args...))
}

// ListByTask retrieves a task's events newest first.
func (r *CollabEventRepository) ListByTask(ctx context.Context, taskID string) ([]*domain.CollaborationEvent, error) {
	query, args, err := psql.
		Select(eventColumns...).
		From("collaboration_events").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByTask query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	return scanEvents(rows)
}

// ListPendingByTarget retrieves unresponded pings and mentions aimed at an
// agent, newest first. Feeds the inbox and badge views.
func (r *CollabEventRepository) ListPendingByTarget(ctx context.Context, targetAgentID string) ([]*domain.CollaborationEvent, error) {
	query, args, err := psql.
		Select(eventColumns...).
		From("collaboration_events").
		Where(sq.Eq{
			"target_agent_id": targetAgentID,
			"responded":       false,
			"type":            []domain.EventType{domain.EventTypePing, domain.EventTypeMention},
		}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListPendingByTarget query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}

	return scanEvents(rows)
}

// CountPendingByTarget is the count-only variant of ListPendingByTarget.
func (r *CollabEventRepository) CountPendingByTarget(ctx context.Context, targetAgentID string) (int, error) {
	query, args, err := psql.
		Select("COUNT(*)").
		From("collaboration_events").
		Where(sq.Eq{
			"target_agent_id": targetAgentID,
			"responded":       false,
			"type":            []domain.EventType{domain.EventTypePing, domain.EventTypeMention},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build CountPendingByTarget query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending events: %w", err)
	}

	return count, nil
}

// CountRecentUnresponded counts unresponded pings/mentions from one agent to
// another created after the given instant. Powers the anti-loop check.
func (r *CollabEventRepository) CountRecentUnresponded(ctx context.Context, fromAgentID, targetAgentID string, since time.Time) (int, error) {
	query, args, err := psql.
		Select("COUNT(*)").
		From("collaboration_events").
		Where(sq.Eq{
			"agent_id":        fromAgentID,
			"target_agent_id": targetAgentID,
			"responded":       false,
		}).
		Where(sq.Gt{"created_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build CountRecentUnresponded query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count recent unresponded events: %w", err)
	}

	return count, nil
}

// CountByTaskAndTarget counts all pings/mentions aimed at an agent on one
// task, regardless of responded state. Powers the rate limit.
func (r *CollabEventRepository) CountByTaskAndTarget(ctx context.Context, taskID, targetAgentID string) (int, error) {
	query, args, err := psql.
		Select("COUNT(*)").
		From("collaboration_events").
		Where(sq.Eq{
			"task_id":         taskID,
			"target_agent_id": targetAgentID,
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build CountByTaskAndTarget query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events by task and target: %w", err)
	}

	return count, nil
}

// MarkResponded flips an event to responded, once. The responded=false
// predicate makes the transition a compare-and-swap.
func (r *CollabEventRepository) MarkResponded(ctx context.Context, tx pgx.Tx, eventID string, at time.Time) error {
	query, args, err := psql.
		Update("collaboration_events").
		Set("responded", true).
		Set("responded_at", at).
		Where(sq.Eq{
			"id":        eventID,
			"responded": false,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build MarkResponded query for event %s: %w", eventID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark event responded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyResponded
	}

	return nil
}
