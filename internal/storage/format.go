package storage

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatSize renders a byte count with binary units, e.g. "12 KiB".
func FormatSize(n uint64) string {
	return humanize.IBytes(n)
}

// SinceModified renders elapsed time in the largest unit whose whole count
// exceeds one: "3 day(s)", "5 hour(s)", "2 minute(s)", otherwise seconds.
//
// The comparison is strictly greater than one, so exactly one hour renders as
// "60 minute(s)" and 47 hours as "47 hour(s)".
func SinceModified(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	seconds := int64(elapsed / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 1:
		return fmt.Sprintf("%d day(s)", days)
	case hours > 1:
		return fmt.Sprintf("%d hour(s)", hours)
	case minutes > 1:
		return fmt.Sprintf("%d minute(s)", minutes)
	default:
		return fmt.Sprintf("%d second(s)", seconds)
	}
}
