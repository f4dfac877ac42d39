package subscription

import (
	"time"

	"github.com/fatflowers/subsync/pkg/types"
)

// ComputePeriodEnd returns anchor advanced by one billing interval.
// Yearly adds a calendar year; anything else adds a calendar month.
// time.AddDate normalizes overflow, so 2024-01-31 plus one month is 2024-03-02.
func ComputePeriodEnd(interval types.Interval, anchor time.Time) time.Time {
	if types.ParseInterval(string(interval)) == types.IntervalYear {
		return anchor.AddDate(1, 0, 0)
	}
	return anchor.AddDate(0, 1, 0)
}
