package utils

import (
	"fmt"
	"time"
)

// FormatPostDate renders createdAt relative to now the way the feed shows it:
// "Just now", "5m", "3h", "1d", and a short date ("Jan 2") past one day.
func FormatPostDate(createdAt, now time.Time) string {
	diff := now.Sub(createdAt)
	minutes := int(diff / time.Minute)
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 1:
		return createdAt.Format("Jan 2")
	case days == 1:
		return "1d"
	case hours >= 1:
		return fmt.Sprintf("%dh", hours)
	case minutes >= 1:
		return fmt.Sprintf("%dm", minutes)
	default:
		return "Just now"
	}
}

// FormatMemberSince renders a profile's join date, e.g. "Joined March 2024".
func FormatMemberSince(createdAt time.Time) string {
	return fmt.Sprintf("Joined %s %d", createdAt.Month().String(), createdAt.Year())
}
