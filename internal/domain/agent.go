package domain

import "time"

// Agent represents a named collaborator on the board, human or automated.
// Name doubles as the @mention handle and is stored lowercase.
type Agent struct {
	ID            string
	Name          string
	Role          string
	Status        string
	CurrentTaskID *string
	SessionKey    string
	CreatedAt     time.Time
}
