package dto

import (
	"time"

	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/service"
)

// TaskResponse represents a card in list and detail views.
type TaskResponse struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Status              string     `json:"status"`
	AssigneeIDs         []string   `json:"assignee_ids"`
	ProjectID           *string    `json:"project_id"`
	SortOrder           *float64   `json:"sort_order"`
	ApprovedBy          *string    `json:"approved_by"`
	ApprovedAt          *time.Time `json:"approved_at"`
	DefinitionApprovals []string   `json:"definition_approvals"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// TasksListResponse represents the response for GET /tasks.
type TasksListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

// TaskDetailResponse represents a card with its unified activity feed.
type TaskDetailResponse struct {
	Task TaskResponse        `json:"task"`
	Feed []FeedEntryResponse `json:"feed"`
}

// EventResponse represents one collaboration event.
type EventResponse struct {
	ID            string         `json:"id"`
	TaskID        string         `json:"task_id"`
	Type          string         `json:"type"`
	AgentID       string         `json:"agent_id"`
	TargetAgentID *string        `json:"target_agent_id,omitempty"`
	Message       string         `json:"message"`
	Severity      *string        `json:"severity,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Responded     *bool          `json:"responded,omitempty"`
	RespondedAt   *time.Time     `json:"responded_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// EventsListResponse represents a list of events.
type EventsListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

// CommentResponse represents one comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentsListResponse represents the response for GET /tasks/:id/comments.
type CommentsListResponse struct {
	Comments []CommentResponse `json:"comments"`
	Total    int               `json:"total"`
}

// MentionInfo reports the fan-out outcome for one @handle in a comment.
type MentionInfo struct {
	Handle  string `json:"handle"`
	EventID string `json:"event_id,omitempty"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// CommentResultResponse is the created comment plus its mention fan-out.
type CommentResultResponse struct {
	Comment  CommentResponse `json:"comment"`
	Mentions []MentionInfo   `json:"mentions"`
}

// FeedEntryResponse is one normalized row of the unified activity feed.
type FeedEntryResponse struct {
	ID            string         `json:"id"`
	Kind          string         `json:"kind"`
	TaskID        string         `json:"task_id"`
	Author        string         `json:"author"`
	Message       string         `json:"message"`
	TargetAgentID *string        `json:"target_agent_id,omitempty"`
	Severity      *string        `json:"severity,omitempty"`
	Responded     *bool          `json:"responded,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// FeedResponse represents the response for GET /tasks/:id/feed.
type FeedResponse struct {
	Feed  []FeedEntryResponse `json:"feed"`
	Total int                 `json:"total"`
}

// AgentResponse represents a registered agent. The session key is only
// returned once, on registration.
type AgentResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Status        string    `json:"status"`
	CurrentTaskID *string   `json:"current_task_id"`
	SessionKey    string    `json:"session_key,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AgentsListResponse represents the response for GET /agents.
type AgentsListResponse struct {
	Agents []AgentResponse `json:"agents"`
	Total  int             `json:"total"`
}

// PendingCountResponse represents the badge count of unresponded pings.
type PendingCountResponse struct {
	Count int `json:"count"`
}

// ApprovalResponse represents the response for POST /tasks/:id/approvals.
type ApprovalResponse struct {
	Approvals       []string `json:"approvals"`
	AlreadyApproved bool     `json:"already_approved"`
}

// NotificationResponse represents one stuck-task alert.
type NotificationResponse struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"task_id"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	TaskTitle    string     `json:"task_title"`
	TaskStatus   string     `json:"task_status"`
	AssigneeIDs  []string   `json:"assignee_ids"`
	DetectedAt   time.Time  `json:"detected_at"`
	SentAt       *time.Time `json:"sent_at"`
	ErrorMessage *string    `json:"error_message"`
	RetryCount   int        `json:"retry_count"`
}

// NotificationsListResponse represents the response for GET /notifications.
type NotificationsListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Total         int                    `json:"total"`
}

// DetectResponse summarizes a detector sweep.
type DetectResponse struct {
	Scanned         int      `json:"scanned"`
	Detected        int      `json:"detected"`
	AlreadyNotified int      `json:"already_notified"`
	Errors          []string `json:"errors,omitempty"`
}

// ProcessResponse summarizes a processor run.
type ProcessResponse struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// SendAlertResponse carries the rendered alert text.
type SendAlertResponse struct {
	NotificationID string `json:"notification_id"`
	Message        string `json:"message"`
}

// CleanupResponse reports how many notifications were deleted.
type CleanupResponse struct {
	Deleted int `json:"deleted"`
}

// StatsResponse represents alert counts by status and type.
type StatsResponse struct {
	Total         int `json:"total"`
	Pending       int `json:"pending"`
	Sent          int `json:"sent"`
	Failed        int `json:"failed"`
	DoneAlerts    int `json:"done_alerts"`
	BlockedAlerts int `json:"blocked_alerts"`
}

// ToTaskResponse converts domain.Task to TaskResponse.
func ToTaskResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:                  task.ID,
		Title:               task.Title,
		Description:         task.Description,
		Status:              string(task.Status),
		AssigneeIDs:         task.AssigneeIDs,
		ProjectID:           task.ProjectID,
		SortOrder:           task.SortOrder,
		ApprovedBy:          task.ApprovedBy,
		ApprovedAt:          task.ApprovedAt,
		DefinitionApprovals: task.DefinitionApprovals,
		CreatedAt:           task.CreatedAt,
		UpdatedAt:           task.UpdatedAt,
	}
}

// ToEventResponse converts domain.CollaborationEvent to EventResponse.
func ToEventResponse(event *domain.CollaborationEvent) EventResponse {
	var severity *string
	if event.Severity != nil {
		s := string(*event.Severity)
		severity = &s
	}

	return EventResponse{
		ID:            event.ID,
		TaskID:        event.TaskID,
		Type:          string(event.Type),
		AgentID:       event.AgentID,
		TargetAgentID: event.TargetAgentID,
		Message:       event.Message,
		Severity:      severity,
		Metadata:      event.Metadata,
		Responded:     event.Responded,
		RespondedAt:   event.RespondedAt,
		CreatedAt:     event.CreatedAt,
	}
}

// ToCommentResponse converts domain.Comment to CommentResponse.
func ToCommentResponse(comment *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		TaskID:    comment.TaskID,
		Author:    comment.Author,
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt,
	}
}

// ToFeedEntryResponse converts service.FeedEntry to FeedEntryResponse.
func ToFeedEntryResponse(entry service.FeedEntry) FeedEntryResponse {
	var severity *string
	if entry.Severity != nil {
		s := string(*entry.Severity)
		severity = &s
	}

	return FeedEntryResponse{
		ID:            entry.ID,
		Kind:          entry.Kind,
		TaskID:        entry.TaskID,
		Author:        entry.Author,
		Message:       entry.Message,
		TargetAgentID: entry.TargetAgentID,
		Severity:      severity,
		Responded:     entry.Responded,
		Metadata:      entry.Metadata,
		CreatedAt:     entry.CreatedAt,
	}
}

// ToAgentResponse converts domain.Agent to AgentResponse. The session key is
// omitted unless includeKey is set.
func ToAgentResponse(agent *domain.Agent, includeKey bool) AgentResponse {
	resp := AgentResponse{
		ID:            agent.ID,
		Name:          agent.Name,
		Role:          agent.Role,
		Status:        agent.Status,
		CurrentTaskID: agent.CurrentTaskID,
		CreatedAt:     agent.CreatedAt,
	}
	if includeKey {
		resp.SessionKey = agent.SessionKey
	}
	return resp
}

// ToNotificationResponse converts domain.Notification to NotificationResponse.
func ToNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:           n.ID,
		TaskID:       n.TaskID,
		Type:         string(n.Type),
		Status:       string(n.Status),
		TaskTitle:    n.TaskTitle,
		TaskStatus:   string(n.TaskStatus),
		AssigneeIDs:  n.AssigneeIDs,
		DetectedAt:   n.DetectedAt,
		SentAt:       n.SentAt,
		ErrorMessage: n.ErrorMessage,
		RetryCount:   n.RetryCount,
	}
}

// ToStatsResponse converts domain.NotificationStats to StatsResponse.
func ToStatsResponse(stats *domain.NotificationStats) StatsResponse {
	return StatsResponse{
		Total:         stats.Total,
		Pending:       stats.Pending,
		Sent:          stats.Sent,
		Failed:        stats.Failed,
		DoneAlerts:    stats.DoneAlerts,
		BlockedAlerts: stats.BlockedAlerts,
	}
}
