package printer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stagegate/stagegate/internal/printer"
)

func TestTimeAgo(t *testing.T) {
	now := time.Now().UTC()

	tests := map[string]struct {
		t        time.Time
		expected string
	}{
		"a single second pluralizes nothing": {
			t:        now.Add(-time.Second),
			expected: "1 second ago (UTC)",
		},
		"under a minute counts seconds": {
			t:        now.Add(-42 * time.Second),
			expected: "42 seconds ago (UTC)",
		},
		"under an hour counts minutes": {
			t:        now.Add(-12 * time.Minute),
			expected: "12 minutes ago (UTC)",
		},
		"a single hour": {
			t:        now.Add(-time.Hour),
			expected: "1 hour ago (UTC)",
		},
		"under a day counts hours": {
			t:        now.Add(-9 * time.Hour),
			expected: "9 hours ago (UTC)",
		},
		"anything older counts days": {
			t:        now.Add(-3 * 24 * time.Hour),
			expected: "3 days ago (UTC)",
		},
		"future times are not extrapolated": {
			t:        now.Add(time.Minute),
			expected: "in the future (UTC)",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, printer.TimeAgo(test.t))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := map[string]struct {
		t        time.Time
		expected string
	}{
		"UTC time renders as is": {
			t:        time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC),
			expected: "2026-08-24 09:30:00 UTC",
		},
		"other zones convert to UTC": {
			t:        time.Date(2026, 8, 24, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600)),
			expected: "2026-08-24 07:30:00 UTC",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, printer.FormatTimestamp(test.t))
		})
	}
}
