package claude

import "time"

// claudeTimeLayout is the RFC3339Nano format Claude Code stamps entries
// with.
const claudeTimeLayout = time.RFC3339Nano

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errEmptyTimestamp
	}
	if t, err := time.Parse(claudeTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(claudeTimeLayout)
}

type timestampError struct{}

func (timestampError) Error() string { return "empty timestamp" }

var errEmptyTimestamp = timestampError{}
