package service

import (
	"regexp"
	"strings"
)

// mentionPattern matches @handle tokens: a maximal run of ASCII letters,
// digits and underscore immediately after '@'.
var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_]+)`)

// ParseMentions extracts the set of agent handles mentioned in free text.
// Handles are lowercased and deduplicated; whether they name a real agent
// is resolved downstream.
func ParseMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var handles []string
	for _, match := range matches {
		handle := strings.ToLower(match[1])
		if seen[handle] {
			continue
		}
		seen[handle] = true
		handles = append(handles, handle)
	}

	return handles
}
