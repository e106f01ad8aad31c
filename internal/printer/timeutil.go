package printer

import (
	"fmt"
	"time"

	humanize "github.com/dustin/go-humanize"
)

// TimeAgo returns how long ago t was, e.g. "5 minutes ago".
func TimeAgo(t time.Time) string { return RelativeTime(t, time.Now()) }

// RelativeTime returns t relative to now, e.g. "3 hours ago" or "2 minutes from now".
func RelativeTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// FormatDuration returns a short human-readable duration truncated to seconds.
// Examples: "0s", "45s", "3m05s", "1h02m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	secs := int(d / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh%02dm", secs/3600, (secs%3600)/60)
	}
}
