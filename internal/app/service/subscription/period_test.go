package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/subsync/pkg/types"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestComputePeriodEnd(t *testing.T) {
	cases := []struct {
		name     string
		interval types.Interval
		anchor   time.Time
		want     time.Time
	}{
		{"year", types.IntervalYear, day(2024, 1, 15), day(2025, 1, 15)},
		{"year from leap day rolls to march", types.IntervalYear, day(2024, 2, 29), day(2025, 3, 1)},
		{"month", types.IntervalMonth, day(2024, 1, 15), day(2024, 2, 15)},
		{"month overflow in leap year", types.IntervalMonth, day(2024, 1, 31), day(2024, 3, 2)},
		{"month overflow in common year", types.IntervalMonth, day(2023, 1, 31), day(2023, 3, 3)},
		{"december rolls the year", types.IntervalMonth, day(2024, 12, 10), day(2025, 1, 10)},
		{"unrecognized defaults to month", types.Interval("fortnight"), day(2024, 4, 1), day(2024, 5, 1)},
		{"empty defaults to month", "", day(2024, 4, 1), day(2024, 5, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ComputePeriodEnd(tc.interval, tc.anchor))
		})
	}
}
