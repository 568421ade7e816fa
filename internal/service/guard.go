package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mtlprog/missionboard/internal/domain"
	"github.com/mtlprog/missionboard/internal/repository"
)

// PingGuard enforces the two anti-spam rules on directed events.
type PingGuard struct {
	eventRepo *repository.CollabEventRepository
	window    time.Duration
	quota     int
}

// NewPingGuard creates a guard with the given anti-loop window and
// per-(task, target) quota.
func NewPingGuard(eventRepo *repository.CollabEventRepository, window time.Duration, quota int) *PingGuard {
	return &PingGuard{
		eventRepo: eventRepo,
		window:    window,
		quota:     quota,
	}
}

// CheckAntiLoop rejects a ping while the target still has an unanswered
// directed event to the sender inside the window. Breaks A->B->A ping
// cycles: answer the existing ping instead of raising a counter-ping.
func (g *PingGuard) CheckAntiLoop(ctx context.Context, fromAgentID, targetAgentID string, now time.Time) error {
	count, err := g.eventRepo.CountRecentUnresponded(ctx, targetAgentID, fromAgentID, now.Add(-g.window))
	if err != nil {
		return fmt.Errorf("check anti-loop: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s has an unanswered ping to %s, respond to it first",
			domain.ErrAntiLoopViolation, targetAgentID, fromAgentID)
	}
	return nil
}

// CheckQuota rejects a directed event once the target has accumulated the
// quota of pings and mentions on the task, answered or not.
func (g *PingGuard) CheckQuota(ctx context.Context, taskID, targetAgentID string) error {
	count, err := g.eventRepo.CountByTaskAndTarget(ctx, taskID, targetAgentID)
	if err != nil {
		return fmt.Errorf("check ping quota: %w", err)
	}
	if count >= g.quota {
		return fmt.Errorf("%w: %s already has %d pings on this task (max %d)",
			domain.ErrRateLimitExceeded, targetAgentID, count, g.quota)
	}
	return nil
}
