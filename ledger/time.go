package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar date (sales, payments and settlement periods are day-based)
// =============================================================================

const DayLayout = "2006-01-02"

type Day struct {
	Time time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t to its calendar date in t's own location.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Day{Time: t}, nil
}

func (d Day) Before(o Day) bool        { return d.Time.Before(o.Time) }
func (d Day) After(o Day) bool         { return d.Time.After(o.Time) }
func (d Day) Equal(o Day) bool         { return d.Time.Equal(o.Time) }
func (d Day) BeforeOrEqual(o Day) bool { return !d.After(o) }
func (d Day) IsZero() bool             { return d.Time.IsZero() }
func (d Day) AddDays(n int) Day        { return Day{Time: d.Time.AddDate(0, 0, n)} }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DayLayout)
}

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

type Period struct {
	Start Day
	End   Day
}

func (p Period) Contains(d Day) bool {
	return p.Start.BeforeOrEqual(d) && d.BeforeOrEqual(p.End)
}

func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

func (p Period) String() string { return p.Start.String() + ".." + p.End.String() }

// PreviousMonth is the default settlement window: the whole calendar month
// before the one containing d.
func PreviousMonth(d Day) Period {
	first := NewDay(d.Time.Year(), d.Time.Month(), 1)
	return Period{Start: Day{Time: first.Time.AddDate(0, -1, 0)}, End: first.AddDays(-1)}
}
