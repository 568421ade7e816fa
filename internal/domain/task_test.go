package domain_test

import (
	"testing"
	"time"

	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestTaskStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    domain.TaskStatus
		to      domain.TaskStatus
		allowed bool
	}{
		{domain.TaskStatusPending, domain.TaskStatusInProgress, true},
		{domain.TaskStatusPending, domain.TaskStatusDone, false},
		{domain.TaskStatusPending, domain.TaskStatusReview, false},
		{domain.TaskStatusInProgress, domain.TaskStatusReview, true},
		{domain.TaskStatusInProgress, domain.TaskStatusBlocked, true},
		{domain.TaskStatusInProgress, domain.TaskStatusPending, true},
		{domain.TaskStatusInProgress, domain.TaskStatusDone, false},
		{domain.TaskStatusReview, domain.TaskStatusDone, true},
		{domain.TaskStatusReview, domain.TaskStatusInProgress, true},
		{domain.TaskStatusReview, domain.TaskStatusBlocked, true},
		{domain.TaskStatusBlocked, domain.TaskStatusInProgress, true},
		{domain.TaskStatusBlocked, domain.TaskStatusPending, true},
		{domain.TaskStatusBlocked, domain.TaskStatusDone, false},
		{domain.TaskStatusDone, domain.TaskStatusInProgress, true},
		{domain.TaskStatusDone, domain.TaskStatusReview, false},
		{domain.TaskStatusDone, domain.TaskStatusDone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTaskStatus_IsValid(t *testing.T) {
	assert.True(t, domain.TaskStatusPending.IsValid())
	assert.True(t, domain.TaskStatusDone.IsValid())
	assert.False(t, domain.TaskStatus("archived").IsValid())
	assert.False(t, domain.TaskStatus("").IsValid())
}

func TestTaskStatus_NeedsStuckWatch(t *testing.T) {
	assert.True(t, domain.TaskStatusDone.NeedsStuckWatch())
	assert.True(t, domain.TaskStatusBlocked.NeedsStuckWatch())
	assert.False(t, domain.TaskStatusPending.NeedsStuckWatch())
	assert.False(t, domain.TaskStatusInProgress.NeedsStuckWatch())
	assert.False(t, domain.TaskStatusReview.NeedsStuckWatch())
}

func TestTask_TimeInStatus(t *testing.T) {
	now := time.Now()
	task := &domain.Task{UpdatedAt: now.Add(-15 * time.Minute)}
	assert.Equal(t, 15*time.Minute, task.TimeInStatus(now))
}

func TestTask_IsAssignee(t *testing.T) {
	task := &domain.Task{AssigneeIDs: []string{"tony", "steve"}}
	assert.True(t, task.IsAssignee("tony"))
	assert.False(t, task.IsAssignee("fury"))

	empty := &domain.Task{}
	assert.False(t, empty.IsAssignee("tony"))
}

func TestEventType_IsDirected(t *testing.T) {
	assert.True(t, domain.EventTypePing.IsDirected())
	assert.True(t, domain.EventTypeMention.IsDirected())
	assert.False(t, domain.EventTypeThoughtLog.IsDirected())
	assert.False(t, domain.EventTypePermissionDenied.IsDirected())
}
