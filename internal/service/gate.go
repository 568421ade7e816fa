package service

import "time"

// DeliveryGate computes the advisory delivery-suppression booleans recorded
// alongside notification triggers. The gate only observes; it never blocks
// the creation of notification records. Actual suppression belongs to the
// external delivery path.
type DeliveryGate struct {
	// QuietHoursStart/End bound the local-time mute window, start
	// inclusive, end exclusive, wrapping midnight when start > end.
	QuietHoursStart int
	QuietHoursEnd   int

	// Throttle is the minimum gap between deliveries for one task.
	Throttle time.Duration
}

// InQuietHours reports whether the instant falls inside the mute window.
func (g DeliveryGate) InQuietHours(now time.Time) bool {
	hour := now.Hour()
	if g.QuietHoursStart > g.QuietHoursEnd {
		return hour >= g.QuietHoursStart || hour < g.QuietHoursEnd
	}
	return hour >= g.QuietHoursStart && hour < g.QuietHoursEnd
}

// Throttled reports whether the task is still inside the throttle window
// since its last notification. A task never notified is not throttled.
func (g DeliveryGate) Throttled(lastNotifiedAt *time.Time, now time.Time) bool {
	if lastNotifiedAt == nil {
		return false
	}
	return now.Sub(*lastNotifiedAt) < g.Throttle
}

// ShouldDeliver combines both checks for the trigger log.
func (g DeliveryGate) ShouldDeliver(lastNotifiedAt *time.Time, now time.Time) bool {
	return !g.InQuietHours(now) && !g.Throttled(lastNotifiedAt, now)
}
