package memory

import (
	"fmt"
	"strings"
)

// Format budget for prompt injection.
const (
	maxContextLength   = 2000
	minLengthPerResult = 100
)

// Format renders the enhancement as a block ready for injection into a
// system prompt. It returns "" when nothing was found.
func (e *Enhancement) Format() string {
	if !e.Enhanced() {
		return ""
	}

	perResult := maxContextLength / len(e.Results)
	if perResult < minLengthPerResult {
		perResult = minLengthPerResult
	}

	parts := []string{"=== RELEVANT MEMORY ===\n"}
	for i, r := range e.Results {
		parts = append(parts, fmt.Sprintf("%d. %s\n", i+1, r.Format(perResult)))
	}
	return strings.Join(parts, "\n")
}

// Format renders one hit within maxLength characters of content.
func (r SearchResult) Format(maxLength int) string {
	line := fmt.Sprintf("[%s] %s", r.Source, truncate(r.Content, maxLength))
	if r.Score > 0 {
		line += fmt.Sprintf(" (score %.2f)", r.Score)
	}
	return line
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
