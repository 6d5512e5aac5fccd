package platformtest

import (
	"fmt"
	"time"

	"example.com/healthsync/internal/platform"
)

// StepsSeries returns n hourly step records starting at start, each with count steps.
func StepsSeries(start time.Time, n int, count int64) []platform.StepsRecord {
	out := make([]platform.StepsRecord, 0, n)
	for i := 0; i < n; i++ {
		c := count
		begin := start.Add(time.Duration(i) * time.Hour)
		out = append(out, platform.StepsRecord{
			ID:        fmt.Sprintf("steps-%d", i),
			StartTime: begin,
			EndTime:   begin.Add(time.Hour),
			Count:     &c,
		})
	}
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
