package dates

import (
	"time"

	"insights-service/internal/model"
)

// Bucket is one half-open time slot [Start, End) on a trend's x-axis.
type Bucket struct {
	Start time.Time
	End   time.Time
}

// Truncate rounds ts down to the start of its containing calendar bucket.
// Weeks start on Sunday, months on the 1st.
func Truncate(ts time.Time, interval model.Interval) time.Time {
	loc := ts.Location()
	switch interval {
	case model.IntervalMinute:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), 0, 0, loc)
	case model.IntervalHour:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, loc)
	case model.IntervalWeek:
		day := StartOfDay(ts)
		return day.AddDate(0, 0, -int(day.Weekday()))
	case model.IntervalMonth:
		return StartOfMonth(ts)
	default:
		return StartOfDay(ts)
	}
}

// Next advances a bucket start by one interval. Calendar-aware: a month step
// lands on the next 1st, not 30 days later.
func Next(start time.Time, interval model.Interval) time.Time {
	switch interval {
	case model.IntervalMinute:
		return start.Add(time.Minute)
	case model.IntervalHour:
		return start.Add(time.Hour)
	case model.IntervalWeek:
		return start.AddDate(0, 0, 7)
	case model.IntervalMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Shift moves a bucket start by n intervals; negative n moves back.
// Calendar-aware like Next.
func Shift(start time.Time, interval model.Interval, n int) time.Time {
	switch interval {
	case model.IntervalMinute:
		return start.Add(time.Duration(n) * time.Minute)
	case model.IntervalHour:
		return start.Add(time.Duration(n) * time.Hour)
	case model.IntervalWeek:
		return start.AddDate(0, 0, 7*n)
	case model.IntervalMonth:
		return start.AddDate(0, n, 0)
	default:
		return start.AddDate(0, 0, n)
	}
}

// BuildBuckets produces the ordered, contiguous bucket sequence covering
// [from, to]. The first bucket is rounded down to its containing calendar
// bucket; the last bucket is the one containing to.
func BuildBuckets(from, to time.Time, interval model.Interval) []Bucket {
	var buckets []Bucket
	for start := Truncate(from, interval); !start.After(to); start = Next(start, interval) {
		buckets = append(buckets, Bucket{Start: start, End: Next(start, interval)})
	}
	return buckets
}

// Label renders the human bucket label. Day-and-coarser intervals show the
// date only; minute/hour append the clock time.
func Label(ts time.Time, interval model.Interval) string {
	switch interval {
	case model.IntervalMinute, model.IntervalHour:
		return ts.Format("Mon. 2 January, 15:04")
	default:
		return ts.Format("Mon. 2 January")
	}
}

// DayString renders the machine-readable bucket boundary for the days field.
func DayString(ts time.Time, interval model.Interval) string {
	switch interval {
	case model.IntervalMinute, model.IntervalHour:
		return ts.Format("2006-01-02 15:04:05")
	default:
		return ts.Format("2006-01-02")
	}
}
