package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeRange_Contains(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		r    TimeRange
		t    time.Time
		want bool
	}{
		{"inside", TimeRange{Start: start, End: end}, start.Add(time.Hour), true},
		{"start inclusive", TimeRange{Start: start, End: end}, start, true},
		{"end exclusive", TimeRange{Start: start, End: end}, end, false},
		{"before", TimeRange{Start: start, End: end}, start.Add(-time.Second), false},
		{"open start", TimeRange{End: end}, start.Add(-time.Hour), true},
		{"open end", TimeRange{Start: start}, end.Add(time.Hour), true},
		{"fully open", TimeRange{}, time.Time{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.r.Contains(tc.t))
		})
	}
}

func TestSliceCursor_SinglePass(t *testing.T) {
	cur := FromSlice([]int{1, 2, 3})
	got, err := Collect(context.Background(), cur)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, got)

	// Collect closed the cursor; a second pass needs a reopen.
	_, _, err = cur.Next(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestSliceCursor_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cur := FromSlice([]int{1, 2, 3})

	_, ok, err := cur.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	cancel()
	_, ok, err = cur.Next(ctx)
	require.False(t, ok)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSliceCursor_FailAfter(t *testing.T) {
	cur := FromSliceFailingAfter([]int{1, 2, 3}, 2)
	_, err := Collect(context.Background(), cur)
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestSliceCursor_SkippedAccounting(t *testing.T) {
	cur := FromSlice([]int{1}).WithSkipped(4)
	require.Equal(t, 4, cur.Skipped())
}
