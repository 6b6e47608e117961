package printer

import (
	"fmt"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05 UTC"

// TimeAgo renders how long ago t happened, always relative to UTC now.
func TimeAgo(t time.Time) string {
	diff := time.Now().UTC().Sub(t.UTC())
	if diff < 0 {
		return "in the future (UTC)"
	}

	var n int
	var unit string
	switch {
	case diff < time.Minute:
		n, unit = int(diff.Seconds()), "second"
	case diff < time.Hour:
		n, unit = int(diff.Minutes()), "minute"
	case diff < 24*time.Hour:
		n, unit = int(diff.Hours()), "hour"
	default:
		n, unit = int(diff.Hours()/24), "day"
	}
	if n != 1 {
		unit += "s"
	}

	return fmt.Sprintf("%d %s ago (UTC)", n, unit)
}

// FormatTimestamp renders t as an absolute UTC wall-clock timestamp.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
