package domain

import "errors"

// Domain-specific errors for business logic validation.
var (
	// Not-found errors
	ErrTaskNotFound         = errors.New("task not found")
	ErrAgentNotFound        = errors.New("agent not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// Permission errors
	ErrPermissionDenied = errors.New("permission denied")

	// Policy violations on pings and mentions
	ErrAntiLoopViolation = errors.New("anti-loop violation")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// State conflicts
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyResponded  = errors.New("event already responded")
	ErrNotRespondable    = errors.New("event is not a ping or mention")

	// Validation errors
	ErrInvalidStatus    = errors.New("invalid task status")
	ErrInvalidEventType = errors.New("invalid event type")
	ErrInvalidSeverity  = errors.New("invalid severity")
	ErrEmptyMessage     = errors.New("message is required")
	ErrEmptyTitle       = errors.New("title is required")

	// Auth errors
	ErrInvalidSessionKey = errors.New("invalid session key")
)
