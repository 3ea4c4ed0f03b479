package analysis

import (
	"errors"
	"testing"
	"time"
)

func TestParsePeriodWidensBareDates(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	p, err := ParsePeriod("2026-03-01", "2026-03-10", now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !p.Start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", p.Start)
	}
	lastMoment := time.Date(2026, 3, 10, 23, 59, 59, 999999999, time.UTC)
	if !p.End.Equal(lastMoment) {
		t.Fatalf("unexpected end %s", p.End)
	}
	if !p.Contains(time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected end day to be inclusive")
	}
	if p.Contains(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected next day to be excluded")
	}
}

func TestParsePeriodDefaults(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	p, err := ParsePeriod("", " ", now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !p.Start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected start of month, got %s", p.Start)
	}
	if !p.Contains(now) || p.Contains(now.Add(24*time.Hour)) {
		t.Fatalf("expected period to end with today, got %s", p.End)
	}
}

func TestParsePeriodAcceptsDatetimes(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	p, err := ParsePeriod("2026-03-01T08:00:00Z", "2026-03-01T09:30:00+01:00", now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !p.End.Equal(time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected offset normalised to UTC, got %s", p.End)
	}
}

func TestParsePeriodRejectsInvertedRange(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	if _, err := ParsePeriod("2026-03-10", "2026-03-01", now); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestParsePeriodRejectsGarbage(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	if _, err := ParsePeriod("not-a-date", "", now); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDayCoversOneCalendarDay(t *testing.T) {
	day := Day(time.Date(2026, 3, 20, 15, 4, 5, 0, time.UTC))
	if !day.Contains(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected midnight included")
	}
	if day.Contains(time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected next midnight excluded")
	}
}

func TestParsePeriodWidensBasicFormatDates(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	for _, raw := range []string{"20240305", "2024/03/05", "March 5, 2024"} {
		p, err := ParsePeriod(raw, raw, now)
		if err != nil {
			t.Fatalf("%s: parse: %v", raw, err)
		}
		if !p.Start.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("%s: unexpected start %s", raw, p.Start)
		}
		if !p.End.Equal(time.Date(2024, 3, 5, 23, 59, 59, 999999999, time.UTC)) {
			t.Fatalf("%s: unexpected end %s", raw, p.End)
		}
		if !p.Contains(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)) {
			t.Fatalf("%s: expected midday sale inside the day", raw)
		}
	}
}

func TestParseDateKeepsExplicitMidnight(t *testing.T) {
	got, err := ParseDate("2024-03-05T00:00:00Z", true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected explicit midnight kept, got %s", got)
	}
}
