package stats

import (
	"fmt"
	"time"

	"github.com/jinzhu/now"
)

// Period selects the statistics window.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

func (p Period) IsValid() bool {
	switch p {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return true
	default:
		return false
	}
}

// ParsePeriod accepts week, month or year; the empty string means month.
func ParsePeriod(s string) (Period, error) {
	if s == "" {
		return PeriodMonth, nil
	}
	p := Period(s)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown period %q: must be week, month or year", s)
	}
	return p, nil
}

// Window returns the inclusive range covered by p ending at t. Months and
// years are calendar arithmetic, not fixed day counts.
func Window(p Period, t time.Time) (from, to time.Time) {
	switch p {
	case PeriodWeek:
		return t.AddDate(0, 0, -7), t
	case PeriodYear:
		return t.AddDate(-1, 0, 0), t
	default:
		return t.AddDate(0, -1, 0), t
	}
}

// DaysInPeriod is the divisor for the daily average: 7 for a week, the
// length of t's calendar month, or of t's calendar year.
func DaysInPeriod(p Period, t time.Time) int {
	switch p {
	case PeriodWeek:
		return 7
	case PeriodYear:
		return now.With(t).EndOfYear().YearDay()
	default:
		return now.With(t).EndOfMonth().Day()
	}
}
