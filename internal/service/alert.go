package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/mtlprog/missionboard/internal/domain"
)

// FormatAlertMessage renders the WhatsApp-style alert text for a stuck-task
// notification.
func FormatAlertMessage(n *domain.Notification, threshold time.Duration) string {
	assignees := "Unassigned"
	if len(n.AssigneeIDs) > 0 {
		assignees = strings.Join(n.AssigneeIDs, ", ")
	}

	var icon, footer string
	switch n.Type {
	case domain.NotificationTypeBlocked:
		icon = "🚨"
		footer = "⚠️ Needs immediate attention"
	default:
		icon = "✅"
		footer = "🎉 Ready for review"
	}

	minutes := int(threshold.Minutes())

	return fmt.Sprintf(`%s *Mission Control Alert*

*Task:* %s
*Status:* %s
*Assignees:* %s
*Time:* >%d minutes in this status

%s`,
		icon,
		n.TaskTitle,
		strings.ToUpper(string(n.TaskStatus)),
		assignees,
		minutes,
		footer,
	)
}
