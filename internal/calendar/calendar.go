// Package calendar provides civil-date arithmetic in a fixed UTC+10 offset:
// day indices within a year, leap-year handling, and the epoch from which
// the navigator's offset_days is measured.
package calendar

import (
	"fmt"
	"time"
)

// FixedZoneOffsetMinutes is the engine's fixed timezone offset (UTC+10, no DST).
const FixedZoneOffsetMinutes = 600

var fixedZone = time.FixedZone("capstripe", FixedZoneOffsetMinutes*60)

// Day is a civil date in the engine's fixed timezone. Zero value is invalid;
// construct via New or Today.
type Day struct {
	Year  int
	Month int // 1-12
	Day   int // 1-31
}

// New constructs a Day, normalising overflow the way time.Date does
// (e.g. month 13 rolls into the next year).
func New(year, month, day int) Day {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, fixedZone)
	return fromTime(t)
}

func fromTime(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: int(m), Day: d}
}

func (d Day) toTime() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, fixedZone)
}

// Today returns the current civil date in the fixed timezone.
func Today() Day {
	return fromTime(time.Now().In(fixedZone))
}

// Yesterday returns the civil date immediately before Today.
func Yesterday() Day {
	return Today().AddDays(-1)
}

// String renders the date as YYYY-MM-DD.
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Compare returns -1, 0 or 1 if d is before, equal to, or after o,
// ordered by (year, month, day).
func (d Day) Compare(o Day) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(d.Month - o.Month)
	case d.Day != o.Day:
		return sign(d.Day - o.Day)
	default:
		return 0
	}
}

func sign(x int) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	default:
		return 0
	}
}

// Before reports whether d is strictly before o.
func (d Day) Before(o Day) bool { return d.Compare(o) < 0 }

// After reports whether d is strictly after o.
func (d Day) After(o Day) bool { return d.Compare(o) > 0 }

// AddDays returns the date n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return fromTime(d.toTime().AddDate(0, 0, n))
}

// Max returns the later of d and o.
func Max(d, o Day) Day {
	if d.After(o) {
		return d
	}
	return o
}

// Min returns the earlier of d and o.
func Min(d, o Day) Day {
	if d.Before(o) {
		return d
	}
	return o
}

// IsLeapYear reports whether year is a leap year in the Gregorian calendar.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DaysInYear returns 366 for leap years, 365 otherwise.
func DaysInYear(year int) int {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// Jan1 returns 1 January of year.
func Jan1(year int) Day { return Day{Year: year, Month: 1, Day: 1} }

// Dec31 returns 31 December of year.
func Dec31(year int) Day { return Day{Year: year, Month: 12, Day: 31} }

// DayIndex returns d's zero-based ordinal day within its own year
// (0 = 1 January).
func DayIndex(d Day) int {
	return int(d.toTime().Sub(Jan1(d.Year).toTime()).Hours() / 24)
}

// FromDayIndex returns the Day for the i-th day (0-based) of year.
func FromDayIndex(year, i int) Day {
	return Jan1(year).AddDays(i)
}

// DaysBetween returns the inclusive-inclusive day count spanning [a, b].
// Returns 0 if b is before a.
func DaysBetween(a, b Day) int {
	if b.Before(a) {
		return 0
	}
	return int(b.toTime().Sub(a.toTime()).Hours()/24) + 1
}

// Epoch is 1 January of the earliest supported year. offset_days is
// measured from this reference point.
func Epoch(earliestYear int) Day {
	return Jan1(earliestYear)
}

// OffsetToDay converts an absolute offset_days (from epoch) into a civil Day.
func OffsetToDay(earliestYear, offsetDays int) Day {
	return Epoch(earliestYear).AddDays(offsetDays)
}

// DayToOffset converts a civil Day into its offset_days from epoch.
func DayToOffset(earliestYear int, d Day) int {
	return int(d.toTime().Sub(Epoch(earliestYear).toTime()).Hours() / 24)
}
