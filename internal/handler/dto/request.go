package dto

// CreateTaskRequest represents the request body for POST /tasks.
type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	AssigneeIDs []string `json:"assignee_ids,omitempty"`
	ProjectID   *string  `json:"project_id,omitempty"`
	SortOrder   *float64 `json:"sort_order,omitempty"`
}

// UpdateStatusRequest represents the request body for PATCH /tasks/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateAssigneesRequest represents the request body for PATCH /tasks/:id/assignees.
type UpdateAssigneesRequest struct {
	AssigneeIDs []string `json:"assignee_ids"`
}

// ReorderRequest represents the request body for PATCH /tasks/:id/order.
type ReorderRequest struct {
	SortOrder *float64 `json:"sort_order"`
}

// ApprovalRequest represents the request body for POST /tasks/:id/approvals.
type ApprovalRequest struct {
	Approver string `json:"approver"`
}

// CommentRequest represents the request body for POST /tasks/:id/comments.
type CommentRequest struct {
	Text string `json:"text"`
}

// CreateEventRequest represents the request body for POST /tasks/:id/events.
// Covers the undirected kinds: thought_log, design_decision, blocker,
// status_change notes.
type CreateEventRequest struct {
	Type     string         `json:"type"`
	Message  string         `json:"message"`
	Severity *string        `json:"severity,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PingRequest represents the request body for POST /tasks/:id/ping.
type PingRequest struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

// RespondRequest represents the request body for POST /events/:id/respond.
type RespondRequest struct {
	Response *string `json:"response,omitempty"`
}

// RegisterAgentRequest represents the request body for POST /agents.
type RegisterAgentRequest struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// CleanupRequest represents the request body for POST /notifications/cleanup.
type CleanupRequest struct {
	OlderThanHours *int `json:"older_than_hours,omitempty"`
}
