package domain

import (
	"slices"
	"time"
)

// TaskStatus represents a column on the board.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusDone       TaskStatus = "done"
)

// transitions is the allowed status graph. done is re-openable so a stuck
// episode can be ended by moving the task back into work.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress},
	TaskStatusInProgress: {TaskStatusReview, TaskStatusBlocked, TaskStatusPending},
	TaskStatusReview:     {TaskStatusDone, TaskStatusInProgress, TaskStatusBlocked},
	TaskStatusBlocked:    {TaskStatusInProgress, TaskStatusPending},
	TaskStatusDone:       {TaskStatusInProgress},
}

// IsValid checks if the status is one of the allowed values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusReview,
		TaskStatusBlocked, TaskStatusDone:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the move s -> next is in the transition table.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	return slices.Contains(transitions[s], next)
}

// NeedsStuckWatch returns true for statuses the stuck-task detector cares about.
func (s TaskStatus) NeedsStuckWatch() bool {
	return s == TaskStatusDone || s == TaskStatusBlocked
}

// Task represents a card on the board.
type Task struct {
	ID                  string
	Title               string
	Description         string
	Status              TaskStatus
	AssigneeIDs         []string
	ProjectID           *string
	SortOrder           *float64
	ApprovedBy          *string
	ApprovedAt          *time.Time
	DefinitionApprovals []string
	NotifiedAt          *time.Time
	NotifiedType        *NotificationType
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsAssignee checks if the given agent handle is among the task's assignees.
func (t *Task) IsAssignee(agentID string) bool {
	return slices.Contains(t.AssigneeIDs, agentID)
}

// HasDefinitionApproval checks if the approver already voted.
func (t *Task) HasDefinitionApproval(approverID string) bool {
	return slices.Contains(t.DefinitionApprovals, approverID)
}

// TimeInStatus returns how long the task has sat in its current status.
func (t *Task) TimeInStatus(now time.Time) time.Duration {
	return now.Sub(t.UpdatedAt)
}
