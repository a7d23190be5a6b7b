package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// RangeAll is the open-ended lower bound: the caller substitutes the earliest
// stored event timestamp for the team.
const RangeAll = "all"

var relativeDatePattern = regexp.MustCompile(`^(-?[0-9]+)?([dhmy])(Start|End)?$`)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-1-02",
	"2006-01-2",
	"2006-1-2",
}

// Parse resolves a date expression to an absolute timestamp relative to now.
// Recognized forms: "-Nd"/"-Nh"/"-Nm" (N days/hours/months back),
// "dStart"/"mStart"/"yStart" (start of current day/month/year),
// "-1mStart"/"-1mEnd" (previous calendar month boundaries) and bare ISO
// date/datetime literals. The result carries now's location.
func Parse(raw string, now time.Time) (time.Time, error) {
	loc := now.Location()

	for _, layout := range absoluteLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, nil
		}
	}

	match := relativeDatePattern.FindStringSubmatch(raw)
	if match == nil {
		return time.Time{}, fmt.Errorf("unparseable date expression %q", raw)
	}

	n := 0
	if match[1] != "" {
		parsed, err := strconv.Atoi(match[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable date expression %q", raw)
		}
		n = parsed
	}
	unit, position := match[2], match[3]

	switch unit {
	case "h":
		return now.Add(time.Duration(n) * time.Hour), nil
	case "d":
		ts := now.AddDate(0, 0, n)
		return StartOfDay(ts), nil
	case "m":
		ts := now.AddDate(0, n, 0)
		switch position {
		case "Start":
			return StartOfMonth(ts), nil
		case "End":
			return EndOfMonth(ts), nil
		default:
			return StartOfDay(ts), nil
		}
	case "y":
		ts := now.AddDate(n, 0, 0)
		if position == "End" {
			return time.Date(ts.Year(), 12, 31, 23, 59, 59, 0, loc), nil
		}
		return time.Date(ts.Year(), 1, 1, 0, 0, 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date expression %q", raw)
}

// StartOfDay returns midnight of ts's civil day.
func StartOfDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

// StartOfMonth returns midnight of the 1st of ts's month.
func StartOfMonth(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, ts.Location())
}

// EndOfMonth returns the last second of ts's month.
func EndOfMonth(ts time.Time) time.Time {
	return StartOfMonth(ts).AddDate(0, 1, 0).Add(-time.Second)
}
