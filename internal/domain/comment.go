package domain

import "time"

// Comment is a message on a task's thread. Immutable once created.
type Comment struct {
	ID        string
	TaskID    string
	Author    string
	Text      string
	CreatedAt time.Time
}
