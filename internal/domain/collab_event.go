package domain

import "time"

// EventType represents the kind of collaboration event.
type EventType string

const (
	EventTypePing             EventType = "ping"
	EventTypeMention          EventType = "mention"
	EventTypeThoughtLog       EventType = "thought_log"
	EventTypeDesignDecision   EventType = "design_decision"
	EventTypeStatusChange     EventType = "status_change"
	EventTypeBlocker          EventType = "blocker"
	EventTypePermissionDenied EventType = "permission_denied"
)

// IsValid checks if the event type is one of the allowed values.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypePing, EventTypeMention, EventTypeThoughtLog,
		EventTypeDesignDecision, EventTypeStatusChange, EventTypeBlocker,
		EventTypePermissionDenied:
		return true
	default:
		return false
	}
}

// IsDirected returns true for event kinds that target another agent and
// carry acknowledgment state.
func (t EventType) IsDirected() bool {
	return t == EventTypePing || t == EventTypeMention
}

// Severity is the urgency attached to blocker events.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// IsValid checks if the severity is one of the allowed values.
func (s Severity) IsValid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// CollaborationEvent is one entry in a task's append-only audit log.
// Responded is the only field ever mutated, and only once.
type CollaborationEvent struct {
	ID            string
	TaskID        string
	Type          EventType
	AgentID       string
	TargetAgentID *string
	Message       string
	Severity      *Severity
	Metadata      map[string]any
	Responded     *bool
	RespondedAt   *time.Time
	CreatedAt     time.Time
}
