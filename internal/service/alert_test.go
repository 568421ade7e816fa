package service_test

import (
	"testing"
	"time"

	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestFormatAlertMessage_Blocked(t *testing.T) {
	n := &domain.Notification{
		Type:        domain.NotificationTypeBlocked,
		TaskTitle:   "Fix the deploy pipeline",
		TaskStatus:  domain.TaskStatusBlocked,
		AssigneeIDs: []string{"tony", "steve"},
	}

	message := service.FormatAlertMessage(n, 10*time.Minute)

	assert.Contains(t, message, "🚨 *Mission Control Alert*")
	assert.Contains(t, message, "*Task:* Fix the deploy pipeline")
	assert.Contains(t, message, "*Status:* BLOCKED")
	assert.Contains(t, message, "*Assignees:* tony, steve")
	assert.Contains(t, message, ">10 minutes in this status")
	assert.Contains(t, message, "⚠️ Needs immediate attention")
}

func TestFormatAlertMessage_Done(t *testing.T) {
	n := &domain.Notification{
		Type:       domain.NotificationTypeDone,
		TaskTitle:  "Ship the landing page",
		TaskStatus: domain.TaskStatusDone,
	}

	message := service.FormatAlertMessage(n, 10*time.Minute)

	assert.Contains(t, message, "✅ *Mission Control Alert*")
	assert.Contains(t, message, "*Status:* DONE")
	assert.Contains(t, message, "*Assignees:* Unassigned")
	assert.Contains(t, message, "🎉 Ready for review")
}

func TestFormatAlertMessage_ThresholdInMinutes(t *testing.T) {
	n := &domain.Notification{
		Type:       domain.NotificationTypeDone,
		TaskTitle:  "t",
		TaskStatus: domain.TaskStatusDone,
	}

	message := service.FormatAlertMessage(n, 45*time.Minute)
	assert.Contains(t, message, ">45 minutes in this status")
}
