package service_test

import (
	"testing"

	"github.com/mtlprog/missionboard/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestParseMentions(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "no mentions",
			text:     "just a plain comment",
			expected: nil,
		},
		{
			name:     "single mention",
			text:     "hey @tony can you look at this",
			expected: []string{"tony"},
		},
		{
			name:     "multiple mentions",
			text:     "@tony and @steve please review",
			expected: []string{"tony", "steve"},
		},
		{
			name:     "duplicates collapse",
			text:     "@tony @tony @tony",
			expected: []string{"tony"},
		},
		{
			name:     "case folds to lowercase",
			text:     "@Tony and @TONY are the same agent",
			expected: []string{"tony"},
		},
		{
			name:     "underscores and digits",
			text:     "ping @agent_42 about the rollout",
			expected: []string{"agent_42"},
		},
		{
			name:     "handle stops at punctuation",
			text:     "thanks @tony, merged",
			expected: []string{"tony"},
		},
		{
			name:     "email-like text still matches the domain part",
			text:     "contact me at tony@stark.io",
			expected: []string{"stark"},
		},
		{
			name:     "bare at sign",
			text:     "meet @ noon",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, service.ParseMentions(tt.text))
		})
	}
}
