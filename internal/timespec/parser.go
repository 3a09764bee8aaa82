package timespec

import (
	"fmt"
	"time"
)

// Parse parses a deadline specification relative to now.
// Supports two formats:
//   - Go duration format: "10m", "1h30m" (that long after now)
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
//
// The deadline must lie in the future.
func Parse(spec string, now time.Time) (time.Time, error) {
	if spec == "" {
		return time.Time{}, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		if !t.After(now) {
			return time.Time{}, fmt.Errorf("time %s is in the past", spec)
		}
		return t, nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("duration must be positive, got %s", spec)
		}
		return now.Add(d), nil
	}

	return time.Time{}, fmt.Errorf("invalid time specification: %s (use duration like '10m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}
