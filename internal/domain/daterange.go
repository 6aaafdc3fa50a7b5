package domain

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "02/01/2006"

// DateRange is a closed reporting window.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// CurrentMonth spans the calendar month containing now.
func CurrentMonth(now time.Time) DateRange {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return DateRange{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Second)}
}

// ParseDateRange accepts "DD/MM/YYYY-DD/MM/YYYY" or a single "DD/MM/YYYY".
// The end day is inclusive to 23:59:59. An empty string yields the current
// month.
func ParseDateRange(s string, now time.Time) (DateRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CurrentMonth(now), nil
	}
	loc := now.Location()

	startStr, endStr, found := strings.Cut(s, "-")
	if !found {
		endStr = startStr
	}
	start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(startStr), loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("ParseDateRange %q: %w", s, ErrInvalidDateRange)
	}
	end, err := time.ParseInLocation(dateLayout, strings.TrimSpace(endStr), loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("ParseDateRange %q: %w", s, ErrInvalidDateRange)
	}
	end = end.Add(24*time.Hour - time.Second)
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("ParseDateRange %q: end before start: %w", s, ErrInvalidDateRange)
	}
	return DateRange{Start: start, End: end}, nil
}
