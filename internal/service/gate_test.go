package service_test

import (
	"testing"
	"time"

	"github.com/mtlprog/missionboard/internal/service"
	"github.com/stretchr/testify/assert"
)

func at(hour int) time.Time {
	return time.Date(2025, 6, 15, hour, 30, 0, 0, time.UTC)
}

func TestDeliveryGate_InQuietHours(t *testing.T) {
	// Default window wraps midnight: 23:00-08:00.
	gate := service.DeliveryGate{QuietHoursStart: 23, QuietHoursEnd: 8}

	tests := []struct {
		name  string
		hour  int
		quiet bool
	}{
		{"late evening", 23, true},
		{"midnight", 0, true},
		{"early morning", 7, true},
		{"end is exclusive", 8, false},
		{"midday", 12, false},
		{"just before start", 22, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.quiet, gate.InQuietHours(at(tt.hour)))
		})
	}
}

func TestDeliveryGate_InQuietHours_NonWrapping(t *testing.T) {
	gate := service.DeliveryGate{QuietHoursStart: 9, QuietHoursEnd: 17}

	assert.True(t, gate.InQuietHours(at(9)))
	assert.True(t, gate.InQuietHours(at(16)))
	assert.False(t, gate.InQuietHours(at(17)))
	assert.False(t, gate.InQuietHours(at(8)))
	assert.False(t, gate.InQuietHours(at(23)))
}

func TestDeliveryGate_Throttled(t *testing.T) {
	gate := service.DeliveryGate{Throttle: 30 * time.Minute}
	now := at(12)

	t.Run("never notified", func(t *testing.T) {
		assert.False(t, gate.Throttled(nil, now))
	})

	t.Run("inside window", func(t *testing.T) {
		last := now.Add(-10 * time.Minute)
		assert.True(t, gate.Throttled(&last, now))
	})

	t.Run("window elapsed", func(t *testing.T) {
		last := now.Add(-31 * time.Minute)
		assert.False(t, gate.Throttled(&last, now))
	})
}

func TestDeliveryGate_ShouldDeliver(t *testing.T) {
	gate := service.DeliveryGate{
		QuietHoursStart: 23,
		QuietHoursEnd:   8,
		Throttle:        30 * time.Minute,
	}

	t.Run("clear at midday", func(t *testing.T) {
		assert.True(t, gate.ShouldDeliver(nil, at(12)))
	})

	t.Run("suppressed at night", func(t *testing.T) {
		assert.False(t, gate.ShouldDeliver(nil, at(2)))
	})

	t.Run("suppressed by throttle", func(t *testing.T) {
		last := at(12).Add(-5 * time.Minute)
		assert.False(t, gate.ShouldDeliver(&last, at(12)))
	})
}
