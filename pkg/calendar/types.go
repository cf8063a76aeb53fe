package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar days (dateFrom/dateTo).
const DateLayout = "2006-01-02"

// Day is the duration of one calendar day.
const Day = 24 * time.Hour

// DateRange is an inclusive range of calendar days.
// Both ends are normalized to UTC midnight. Use NewDateRange to construct one.
type DateRange struct {
	from time.Time
	to   time.Time
}

// NewDateRange builds a DateRange, returning ErrInvalidRange if from is after to.
func NewDateRange(from, to time.Time) (DateRange, error) {
	f, t := TruncateDay(from), TruncateDay(to)
	if f.After(t) {
		return DateRange{}, fmt.Errorf("%w: %s is after %s",
			ErrInvalidRange, f.Format(DateLayout), t.Format(DateLayout))
	}
	return DateRange{from: f, to: t}, nil
}

// ParseDateRange parses two YYYY-MM-DD strings into a DateRange.
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: date_from %q: %v", ErrInvalidRange, from, err)
	}
	t, err := time.Parse(DateLayout, to)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: date_to %q: %v", ErrInvalidRange, to, err)
	}
	return NewDateRange(f, t)
}

// From returns the first day of the range.
func (r DateRange) From() time.Time { return r.from }

// To returns the last day of the range (inclusive).
func (r DateRange) To() time.Time { return r.to }

// Days returns the number of calendar days covered, ends included.
func (r DateRange) Days() int {
	return DaysBetween(r.from, r.to) + 1
}

// IsZero reports whether the range was never constructed.
func (r DateRange) IsZero() bool {
	return r.from.IsZero() && r.to.IsZero()
}

// String formats the range as "from..to".
func (r DateRange) String() string {
	return r.from.Format(DateLayout) + ".." + r.to.Format(DateLayout)
}

// Chunk is one sub-interval of a DateRange queried with a single request series.
type Chunk struct {
	From  time.Time
	To    time.Time
	Index int
}

// Days returns the chunk width in calendar days, ends included.
func (c Chunk) Days() int {
	return DaysBetween(c.From, c.To) + 1
}

// String formats the chunk for logs.
func (c Chunk) String() string {
	return fmt.Sprintf("#%d %s..%s", c.Index, c.From.Format(DateLayout), c.To.Format(DateLayout))
}

// Category separates regular releases from market holidays.
type Category string

const (
	// CategoryEconomic is a scheduled economic release.
	CategoryEconomic Category = "economic"

	// CategoryHoliday is a market holiday row.
	CategoryHoliday Category = "holiday"
)

// Impact is the expected market impact of an event.
type Impact string

const (
	ImpactLow     Impact = "Low"
	ImpactMedium  Impact = "Medium"
	ImpactHigh    Impact = "High"
	ImpactHoliday Impact = "Holiday"
)

// RawEvent is one calendar row as produced by the parser.
type RawEvent struct {
	// SourceID is the upstream row id (eventRowId_<id>). May be empty or unstable.
	SourceID string `json:"event_id,omitempty"`

	Title     string    `json:"event"`
	Timestamp time.Time `json:"datetime"`
	Country   string    `json:"country"`
	Currency  string    `json:"currency"`
	Category  Category  `json:"category"`
	Impact    Impact    `json:"impact"`

	Actual   string `json:"actual,omitempty"`
	Forecast string `json:"forecast,omitempty"`
	Previous string `json:"previous,omitempty"`
	URL      string `json:"event_url,omitempty"`

	// AllDay is set for rows without a time of day (holidays).
	AllDay bool `json:"all_day,omitempty"`
}

// IsHoliday reports whether the event belongs to the holiday group.
func (e RawEvent) IsHoliday() bool {
	return e.Category == CategoryHoliday || e.Impact == ImpactHoliday
}

// Filters are the upstream query filters applied to every chunk request.
type Filters struct {
	// Countries are upstream country ids (country[]). Empty means the default list.
	Countries []int `json:"countries,omitempty" yaml:"countries"`

	// Categories are upstream category slugs (category[]).
	Categories []string `json:"categories,omitempty" yaml:"categories"`

	// Importance levels 1..3 (importance[]).
	Importance []int `json:"importance,omitempty" yaml:"importance"`

	// TimeZone is the upstream timezone id (55 = UTC).
	TimeZone int `json:"timezone,omitempty" yaml:"timezone"`

	// TimeFilter is "timeRemain" or "timeOnly".
	TimeFilter string `json:"time_filter,omitempty" yaml:"time_filter"`
}

// TruncateDay returns t at UTC midnight of its calendar day.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(TruncateDay(b).Sub(TruncateDay(a)) / Day)
}
