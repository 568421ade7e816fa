package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""
)

// Rules holds the tunables of the collaboration rule engine. Defaults match
// the board's original behavior; override via MISSIONBOARD_* env vars.
type Rules struct {
	// CoordinatorID is the privileged handle allowed to bootstrap
	// assignment, reassign, and manage definition approvals.
	CoordinatorID string `envconfig:"COORDINATOR_ID" default:"fury"`

	// AlertAgentID authors the alert blocker events emitted by the
	// pending-notification processor.
	AlertAgentID string `envconfig:"ALERT_AGENT_ID" default:"loki"`

	// TriggerAgentID authors the inline notification-trigger thought logs
	// written on done/blocked status changes.
	TriggerAgentID string `envconfig:"TRIGGER_AGENT_ID" default:"shuri"`

	// AntiLoopWindow rejects a ping while the target has an unanswered ping
	// to the sender newer than this.
	AntiLoopWindow time.Duration `envconfig:"ANTI_LOOP_WINDOW" default:"5m"`

	// PingQuota caps pings+mentions per (task, target) pair.
	PingQuota int `envconfig:"PING_QUOTA" default:"3"`

	// StuckThreshold is how long a task may sit in done/blocked before the
	// detector raises an alert.
	StuckThreshold time.Duration `envconfig:"STUCK_THRESHOLD" default:"10m"`

	// NotificationThrottle is the advisory window after a notification
	// during which delivery should be suppressed.
	NotificationThrottle time.Duration `envconfig:"NOTIFICATION_THROTTLE" default:"30m"`

	// QuietHoursStart/End bound the local-time window (start inclusive,
	// end exclusive, wrapping midnight) of advisory delivery suppression.
	QuietHoursStart int `envconfig:"QUIET_HOURS_START" default:"23"`
	QuietHoursEnd   int `envconfig:"QUIET_HOURS_END" default:"8"`

	// ProcessBatchSize caps how many pending notifications one processor
	// run dequeues.
	ProcessBatchSize int `envconfig:"PROCESS_BATCH_SIZE" default:"10"`

	// CleanupAge is the default age after which sent notifications are
	// deleted by the cleanup job.
	CleanupAge time.Duration `envconfig:"CLEANUP_AGE" default:"24h"`
}

// LoadRules reads rule settings from the environment on top of defaults.
func LoadRules() (*Rules, error) {
	var r Rules
	if err := envconfig.Process("missionboard", &r); err != nil {
		return nil, fmt.Errorf("process rules config: %w", err)
	}
	if r.PingQuota < 1 {
		return nil, fmt.Errorf("ping quota must be at least 1, got %d", r.PingQuota)
	}
	if r.QuietHoursStart < 0 || r.QuietHoursStart > 23 || r.QuietHoursEnd < 0 || r.QuietHoursEnd > 23 {
		return nil, fmt.Errorf("quiet hours must be within 0-23, got %d-%d", r.QuietHoursStart, r.QuietHoursEnd)
	}
	return &r, nil
}
