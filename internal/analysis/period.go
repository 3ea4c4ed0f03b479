package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	ErrInvalidRange = errors.New("invalid range: start is after end")
	ErrInvalidDate  = errors.New("invalid date")
)

const dateLayout = "2006-01-02"

// dateOnlyLayouts are the bare-date forms accepted besides dateLayout.
var dateOnlyLayouts = []string{dateLayout, "20060102", "2006/01/02", "2006.01.02"}

// Period is a closed UTC interval [Start, End].
type Period struct {
	Start time.Time
	End   time.Time
}

func NewPeriod(start time.Time, end time.Time) (Period, error) {
	start, end = start.UTC(), end.UTC()
	if start.After(end) {
		return Period{}, ErrInvalidRange
	}
	return Period{Start: start, End: end}, nil
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Day returns the UTC calendar day holding t.
func Day(t time.Time) Period {
	start := startOfDay(t)
	return Period{Start: start, End: endOfDay(start)}
}

// ParsePeriod reads ISO-8601 date or datetime bounds. A bare date is widened
// to the whole day: start-of-day for start, end-of-day (inclusive) for end.
// An empty start means the first day of now's month and an empty end means
// the end of now's day.
func ParsePeriod(startRaw string, endRaw string, now time.Time) (Period, error) {
	now = now.UTC()

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if strings.TrimSpace(startRaw) != "" {
		parsed, err := ParseDate(startRaw, false)
		if err != nil {
			return Period{}, err
		}
		start = parsed
	}

	end := endOfDay(startOfDay(now))
	if strings.TrimSpace(endRaw) != "" {
		parsed, err := ParseDate(endRaw, true)
		if err != nil {
			return Period{}, err
		}
		end = parsed
	}

	return NewPeriod(start, end)
}

// ParseDate reads one ISO-8601 date or datetime as UTC. A bare date is the
// start of that day, or its last instant when endOfRange is set. Input with no
// time of day counts as a bare date whatever its layout.
func ParseDate(raw string, endOfRange bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateOnlyLayouts {
		if day, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return dayBound(day, endOfRange), nil
		}
	}

	parsed, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	parsed = parsed.UTC()
	if !strings.Contains(raw, ":") && parsed.Equal(startOfDay(parsed)) {
		return dayBound(parsed, endOfRange), nil
	}
	return parsed, nil
}

func dayBound(day time.Time, endOfRange bool) time.Time {
	if endOfRange {
		return endOfDay(day)
	}
	return day
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(dayStart time.Time) time.Time {
	return dayStart.Add(24*time.Hour - time.Nanosecond)
}
