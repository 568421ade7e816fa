package domain

import "time"

// NotificationType mirrors the task status that triggered the alert.
type NotificationType string

const (
	NotificationTypeDone    NotificationType = "done"
	NotificationTypeBlocked NotificationType = "blocked"
)

// NotificationStatus is the delivery lifecycle of an alert.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is a stuck-task alert record. Task title, status and
// assignees are denormalized at detection time so the alert text survives
// later task edits. At most one pending notification exists per task.
type Notification struct {
	ID           string
	TaskID       string
	Type         NotificationType
	Status       NotificationStatus
	TaskTitle    string
	TaskStatus   TaskStatus
	AssigneeIDs  []string
	DetectedAt   time.Time
	SentAt       *time.Time
	ErrorMessage *string
	RetryCount   int
}

// NotificationStats holds alert counts by status and type.
type NotificationStats struct {
	Total         int
	Pending       int
	Sent          int
	Failed        int
	DoneAlerts    int
	BlockedAlerts int
}
