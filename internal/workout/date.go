package workout

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date in the YYYY-MM-DD form. Dates compare correctly as strings.
type Date string

func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) IsValid() bool {
	_, err := time.Parse(dateLayout, string(d))
	return err == nil
}

func (d Date) Before(other Date) bool {
	return d < other
}

// AddDays panics on an invalid date.
func (d Date) AddDays(n int) Date {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		panic(err)
	}
	return DateOf(t.AddDate(0, 0, n))
}

func (d Date) String() string {
	return string(d)
}

// Clock abstracts time so "today" is caller supplied and deterministic in tests.
type Clock interface {
	Now() time.Time
	Today() Date
}

type SystemClock struct {
	Location *time.Location
}

func NewSystemClock(timezone string) (SystemClock, error) {
	if timezone == "" {
		return SystemClock{Location: time.UTC}, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return SystemClock{}, fmt.Errorf("load location %q: %w", timezone, err)
	}
	return SystemClock{Location: loc}, nil
}

func (c SystemClock) Now() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

func (c SystemClock) Today() Date {
	return DateOf(c.Now())
}

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time {
	return c.T
}

func (c *FixedClock) Today() Date {
	return DateOf(c.T)
}

func (c *FixedClock) Advance(d time.Duration) {
	c.T = c.T.Add(d)
}
