package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParse_RelativeExpressions(t *testing.T) {
	now := time.Date(2020, 1, 31, 13, 37, 42, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "days back rounds to midnight",
			raw:  "-7d",
			want: time.Date(2020, 1, 24, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "hours back keeps the clock",
			raw:  "-24h",
			want: time.Date(2020, 1, 30, 13, 37, 42, 0, time.UTC),
		},
		{
			name: "start of current day",
			raw:  "dStart",
			want: time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "previous month start",
			raw:  "-1mStart",
			want: time.Date(2019, 12, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "previous month end",
			raw:  "-1mEnd",
			want: time.Date(2019, 12, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			name: "start of current year",
			raw:  "yStart",
			want: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "previous year end",
			raw:  "-1yEnd",
			want: time.Date(2019, 12, 31, 23, 59, 59, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw, now)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParse_AbsoluteLiterals(t *testing.T) {
	loc, err := time.LoadLocation("US/Pacific")
	require.NoError(t, err)
	now := time.Date(2020, 1, 31, 13, 0, 0, 0, loc)

	got, err := Parse("2020-01-02", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, loc), got)

	got, err = Parse("2020-01-02 10:30:00", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2020, 1, 2, 10, 30, 0, 0, loc), got)

	// Single-digit month and day are accepted.
	got, err = Parse("2020-1-2", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2020, 1, 2, 0, 0, 0, 0, loc), got)
}

func TestParse_Unparseable(t *testing.T) {
	now := time.Date(2020, 1, 31, 13, 0, 0, 0, time.UTC)

	for _, raw := range []string{"yesterday", "-7x", "5", ""} {
		_, err := Parse(raw, now)
		require.Error(t, err, raw)
	}
}
