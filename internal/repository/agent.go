package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/missionboard/internal/domain"
)

var agentColumns = []string{"id", "name", "role", "status", "current_task_id", "session_key", "created_at"}

// AgentRepository handles database operations for agents.
type AgentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository creates a new AgentRepository.
func NewAgentRepository(pool *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{pool: pool}
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var agent domain.Agent
	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.Role,
		&agent.Status,
		&agent.CurrentTaskID,
		&agent.SessionKey,
		&agent.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	return &agent, nil
}

// Create registers a new agent.
func (r *AgentRepository) Create(ctx context.Context, agent *domain.Agent) (*domain.Agent, error) {
	query, args, err := psql.
		Insert("agents").
		Columns("name", "role", "status", "session_key").
		Values(agent.Name, agent.Role, agent.Status, agent.SessionKey).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for agent: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&agent.ID, &agent.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	return agent, nil
}

// GetByName retrieves an agent by its handle.
func (r *AgentRepository) GetByName(ctx context.Context, name string) (*domain.Agent, error) {
	query, args, err := psql.
		Select(agentColumns...).
		From("agents").
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByName query: %w", err)
	}

	return scanAgent(r.pool.QueryRow(ctx, query, args...))
}

// GetBySessionKey finds an agent by its session key.
func (r *AgentRepository) GetBySessionKey(ctx context.Context, sessionKey string) (*domain.Agent, error) {
	query, args, err := psql.
		Select(agentColumns...).
		From("agents").
		Where(sq.Eq{"session_key": sessionKey}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetBySessionKey query: %w", err)
	}

	return scanAgent(r.pool.QueryRow(ctx, query, args...))
}

// List returns all agents ordered by handle.
func (r *AgentRepository) List(ctx context.Context) ([]*domain.Agent, error) {
	query, args, err := psql.
		Select(agentColumns...).
		From("agents").
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var agents []*domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return agents, nil
}
