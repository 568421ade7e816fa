package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/missionboard/internal/config"
	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/repository"
)

// CollabService coordinates the collaboration log: comments with mention
// fan-out, directed pings with anti-spam guards, thought logs, design
// decisions and blockers.
type CollabService struct {
	pool        *pgxpool.Pool
	taskRepo    *repository.TaskRepository
	agentRepo   *repository.AgentRepository
	eventRepo   *repository.CollabEventRepository
	commentRepo *repository.CommentRepository
	guard       *PingGuard
}

// NewCollabService creates a new CollabService.
func NewCollabService(
	pool *pgxpool.Pool,
	taskRepo *repository.TaskRepository,
	agentRepo *repository.AgentRepository,
	eventRepo *repository.CollabEventRepository,
	commentRepo *repository.CommentRepository,
	rules *config.Rules,
) *CollabService {
	return &CollabService{
		pool:        pool,
		taskRepo:    taskRepo,
		agentRepo:   agentRepo,
		eventRepo:   eventRepo,
		commentRepo: commentRepo,
		guard:       NewPingGuard(eventRepo, rules.AntiLoopWindow, rules.PingQuota),
	}
}

// CreateEventParams holds the fields for an undirected log entry.
type CreateEventParams struct {
	TaskID   string
	Type     domain.EventType
	AgentID  string
	Message  string
	Severity *domain.Severity
	Metadata map[string]any
}

// CreateEvent appends an undirected entry to a task's log. Directed kinds
// (ping, mention) must go through PingAgent or comment mention fan-out so
// the anti-spam guards apply.
func (s *CollabService) CreateEvent(ctx context.Context, params CreateEventParams) (*domain.CollaborationEvent, error) {
	if !params.Type.IsValid() || params.Type.IsDirected() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidEventType, params.Type)
	}
	if strings.TrimSpace(params.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}
	if params.Severity != nil && !params.Severity.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSeverity, *params.Severity)
	}

	if _, err := s.taskRepo.GetByID(ctx, params.TaskID); err != nil {
		return nil, err
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

	event := &domain.CollaborationEvent{
		TaskID:   params.TaskID,
		Type:     params.Type,
		AgentID:  params.AgentID,
		Message:  params.Message,
		Severity: params.Severity,
		Metadata: params.Metadata,
	}

	if err := s.eventRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("event created",
		"task_id", params.TaskID,
		"type", params.Type,
		"agent_id", params.AgentID,
		"event_id", event.ID,
	)

	return event, nil
}

// LogThought records a free-form working note.
func (s *CollabService) LogThought(ctx context.Context, taskID, agentID, thought string) (*domain.CollaborationEvent, error) {
	return s.CreateEvent(ctx, CreateEventParams{
		TaskID:  taskID,
		Type:    domain.EventTypeThoughtLog,
		AgentID: agentID,
		Message: thought,
	})
}

// RecordDesignDecision records a decision, optionally with its rationale.
func (s *CollabService) RecordDesignDecision(ctx context.Context, taskID, agentID, decision string, rationale *string) (*domain.CollaborationEvent, error) {
	var metadata map[string]any
	if rationale != nil && *rationale != "" {
		metadata = map[string]any{"rationale": *rationale}
	}
	return s.CreateEvent(ctx, CreateEventParams{
		TaskID:   taskID,
		Type:     domain.EventTypeDesignDecision,
		AgentID:  agentID,
		Message:  decision,
		Metadata: metadata,
	})
}

// ReportBlocker records an impediment with its urgency.
func (s *CollabService) ReportBlocker(ctx context.Context, taskID, agentID, description string, severity domain.Severity) (*domain.CollaborationEvent, error) {
	if !severity.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSeverity, severity)
	}
	return s.CreateEvent(ctx, CreateEventParams{
		TaskID:   taskID,
		Type:     domain.EventTypeBlocker,
		AgentID:  agentID,
		Message:  description,
		Severity: &severity,
	})
}

// PingAgent raises a directed ping after both anti-spam checks pass: no
// unanswered reverse ping inside the anti-loop window, and the target's
// per-task quota not yet exhausted.
func (s *CollabService) PingAgent(ctx context.Context, taskID, fromAgentID, targetAgentID, message string) (*domain.CollaborationEvent, error) {
	if strings.TrimSpace(message) == "" {
		return nil, domain.ErrEmptyMessage
	}

	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return nil, err
	}

	target, err := s.agentRepo.GetByName(ctx, strings.ToLower(targetAgentID))
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.guard.CheckAntiLoop(ctx, fromAgentID, target.Name, now); err != nil {
		return nil, err
	}
	if err := s.guard.CheckQuota(ctx, taskID, target.Name); err != nil {
		return nil, err
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

	responded := false
	event := &domain.CollaborationEvent{
		TaskID:        taskID,
		Type:          domain.EventTypePing,
		AgentID:       fromAgentID,
		TargetAgentID: &target.Name,
		Message:       message,
		Responded:     &responded,
	}

	if err := s.eventRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("agent pinged",
		"task_id", taskID,
		"from", fromAgentID,
		"target", target.Name,
		"event_id", event.ID,
	)

	return event, nil
}

// RespondToPing acknowledges a ping, exactly once. A non-empty response is
// recorded as a comment authored by the ping's target.
func (s *CollabService) RespondToPing(ctx context.Context, eventID string, response *string) (*domain.CollaborationEvent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	event, err := s.eventRepo.GetByIDForUpdate(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}

	if event.Type != domain.EventTypePing {
		return nil, fmt.Errorf("%w: %s event cannot be responded to", domain.ErrNotRespondable, event.Type)
	}
	if event.Responded != nil && *event.Responded {
		return nil, domain.ErrAlreadyResponded
	}

	now := time.Now()
	if err := s.eventRepo.MarkResponded(ctx, tx, eventID, now); err != nil {
		return nil, err
	}

	if response != nil && strings.TrimSpace(*response) != "" {
		author := "unknown"
		if event.TargetAgentID != nil {
			author = *event.TargetAgentID
		}
		comment := &domain.Comment{
			TaskID: event.TaskID,
			Author: author,
			Text:   *response,
		}
		if err := s.commentRepo.Create(ctx, tx, comment); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	responded := true
	event.Responded = &responded
	event.RespondedAt = &now

	slog.Info("ping responded",
		"event_id", eventID,
		"task_id", event.TaskID,
	)

	return event, nil
}

// ResolveMention acknowledges a ping or mention without a response comment.
func (s *CollabService) ResolveMention(ctx context.Context, eventID string) (*domain.CollaborationEvent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	event, err := s.eventRepo.GetByIDForUpdate(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}

	if !event.Type.IsDirected() {
		return nil, fmt.Errorf("%w: %s event cannot be resolved", domain.ErrNotRespondable, event.Type)
	}
	if event.Responded != nil && *event.Responded {
		return nil, domain.ErrAlreadyResponded
	}

	now := time.Now()
	if err := s.eventRepo.MarkResponded(ctx, tx, eventID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	responded := true
	event.Responded = &responded
	event.RespondedAt = &now

	slog.Info("mention resolved",
		"event_id", eventID,
		"task_id", event.TaskID,
	)

	return event, nil
}

// PendingPings returns unresponded pings and mentions aimed at the agent,
// newest first.
func (s *CollabService) PendingPings(ctx context.Context, agentID string) ([]*domain.CollaborationEvent, error) {
	return s.eventRepo.ListPendingByTarget(ctx, strings.ToLower(agentID))
}

// CountPendingPings is the badge-count variant of PendingPings.
func (s *CollabService) CountPendingPings(ctx context.Context, agentID string) (int, error) {
	return s.eventRepo.CountPendingByTarget(ctx, strings.ToLower(agentID))
}

// MentionResult reports the outcome of one mention found in a comment.
type MentionResult struct {
	Handle  string
	EventID string
	Skipped bool
	Reason  string
}

// CommentResult is a created comment plus its mention fan-out.
type CommentResult struct {
	Comment  *domain.Comment
	Mentions []MentionResult
}

// AddComment records a comment and fans out a mention event per @handle in
// the text. Unknown handles and handles over their per-task quota are
// skipped, never failing the comment itself. Mentions deliberately bypass
// the anti-loop check: a comment is broadcast, not a direct nag.
func (s *CollabService) AddComment(ctx context.Context, taskID, author, text string) (*CommentResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyMessage
	}

	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return nil, err
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

	comment := &domain.Comment{
		TaskID: taskID,
		Author: author,
		Text:   text,
	}
	if err := s.commentRepo.Create(ctx, tx, comment); err != nil {
		return nil, err
	}

	responded := false
	var mentions []MentionResult
	for _, handle := range ParseMentions(text) {
		agent, err := s.agentRepo.GetByName(ctx, handle)
		if err != nil {
			if errors.Is(err, domain.ErrAgentNotFound) {
				mentions = append(mentions, MentionResult{
					Handle:  handle,
					Skipped: true,
					Reason:  "unknown agent",
				})
				continue
			}
			return nil, err
		}

		if err := s.guard.CheckQuota(ctx, taskID, agent.Name); err != nil {
			if errors.Is(err, domain.ErrRateLimitExceeded) {
				mentions = append(mentions, MentionResult{
					Handle:  agent.Name,
					Skipped: true,
					Reason:  "rate limit reached",
				})
				continue
			}
			return nil, err
		}

		event := &domain.CollaborationEvent{
			TaskID:        taskID,
			Type:          domain.EventTypeMention,
			AgentID:       author,
			TargetAgentID: &agent.Name,
			Message:       fmt.Sprintf("Mentioned in a comment: %s", text),
			Responded:     &responded,
			Metadata:      map[string]any{"commentId": comment.ID},
		}
		if err := s.eventRepo.Create(ctx, tx, event); err != nil {
			return nil, err
		}

		mentions = append(mentions, MentionResult{
			Handle:  agent.Name,
			EventID: event.ID,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("comment added",
		"task_id", taskID,
		"author", author,
		"comment_id", comment.ID,
		"mentions", len(mentions),
	)

	return &CommentResult{Comment: comment, Mentions: mentions}, nil
}

// FeedEntry is one normalized row of the unified activity feed.
type FeedEntry struct {
	ID            string
	Kind          string
	TaskID        string
	Author        string
	Message       string
	TargetAgentID *string
	Severity      *domain.Severity
	Responded     *bool
	Metadata      map[string]any
	CreatedAt     time.Time
}

// UnifiedFeed merges a task's comments and events into one list, newest first.
func (s *CollabService) UnifiedFeed(ctx context.Context, taskID string) ([]FeedEntry, error) {
	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return nil, err
	}

	comments, err := s.commentRepo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	events, err := s.eventRepo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	feed := make([]FeedEntry, 0, len(comments)+len(events))
	for _, c := range comments {
		feed = append(feed, FeedEntry{
			ID:        c.ID,
			Kind:      "comment",
			TaskID:    c.TaskID,
			Author:    c.Author,
			Message:   c.Text,
			CreatedAt: c.CreatedAt,
		})
	}
	for _, e := range events {
		feed = append(feed, FeedEntry{
			ID:            e.ID,
			Kind:          string(e.Type),
			TaskID:        e.TaskID,
			Author:        e.AgentID,
			Message:       e.Message,
			TargetAgentID: e.TargetAgentID,
			Severity:      e.Severity,
			Responded:     e.Responded,
			Metadata:      e.Metadata,
			CreatedAt:     e.CreatedAt,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].CreatedAt.After(feed[j].CreatedAt)
	})

	return feed, nil
}
