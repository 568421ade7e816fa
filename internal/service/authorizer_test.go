package service_test

import (
	"testing"

	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/service"
	"github.com/stretchr/testify/assert"
)

const coordinator = "fury"

func TestAuthorizeStatusChange(t *testing.T) {
	tests := []struct {
		name      string
		assignees []string
		requestor string
		allowed   bool
	}{
		{
			name:      "coordinator moves unassigned task",
			assignees: nil,
			requestor: coordinator,
			allowed:   true,
		},
		{
			name:      "non-coordinator cannot move unassigned task",
			assignees: nil,
			requestor: "tony",
			allowed:   false,
		},
		{
			name:      "assignee moves own task",
			assignees: []string{"tony", "steve"},
			requestor: "tony",
			allowed:   true,
		},
		{
			name:      "coordinator cannot move assigned task",
			assignees: []string{"tony"},
			requestor: coordinator,
			allowed:   false,
		},
		{
			name:      "outsider cannot move assigned task",
			assignees: []string{"tony"},
			requestor: "steve",
			allowed:   false,
		},
		{
			name:      "coordinator as assignee is allowed",
			assignees: []string{coordinator, "tony"},
			requestor: coordinator,
			allowed:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &domain.Task{AssigneeIDs: tt.assignees}
			decision := service.AuthorizeStatusChange(task, tt.requestor, coordinator)

			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.NotEmpty(t, decision.Reason)
			}
		})
	}
}

// Exactly one rule fires for any requestor: a denial always carries a reason
// and an approval never does.
func TestAuthorizeStatusChange_ReasonOnlyOnDenial(t *testing.T) {
	task := &domain.Task{AssigneeIDs: []string{"tony"}}

	allowed := service.AuthorizeStatusChange(task, "tony", coordinator)
	assert.True(t, allowed.Allowed)
	assert.Empty(t, allowed.Reason)

	denied := service.AuthorizeStatusChange(task, "steve", coordinator)
	assert.False(t, denied.Allowed)
	assert.NotEmpty(t, denied.Reason)
}
