// Package calendar provides the date and minute-of-day arithmetic shared by
// the clock, the solar calculator and the switch scheduler. The device works
// in raw (year, month, day, minutes-since-midnight) tuples as read from the
// RTC; there are no timezones here beyond the fixed offset applied elsewhere.
package calendar

import "fmt"

const (
	MinutesPerHour = 60
	MinutesPerDay  = 1440
)

// Day-of-week values returned by Date.DayOfWeek.
const (
	Sunday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DayName returns the English name for a day-of-week value.
func DayName(dow int) string {
	if dow < 0 || dow > 6 {
		return "???"
	}
	return dayNames[dow]
}

// Date is an immutable calendar date. The device operates between 2000 and
// 2070, so the divisible-by-4 leap rule is sufficient (2100 is out of range).
type Date struct {
	Year  int
	Month int // 1..12
	Day   int // 1..31, bounded by month
}

func New(year, month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

var daysInMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(month, year int) int {
	days := daysInMonth[month-1]
	if month == 2 && year%4 == 0 {
		days++
	}
	return days
}

// DayOfWeek returns the day of the week for the date, 0 = Sunday. The same
// congruence is used everywhere in the system so that the clock and the
// scheduler always agree on which weekday an instant belongs to.
func (d Date) DayOfWeek() int {
	adjustment := (14 - d.Month) / 12
	mm := d.Month + 12*adjustment - 2
	yy := d.Year - adjustment
	return (d.Day + (13*mm-1)/5 + yy + yy/4 - yy/100 + yy/400) % 7
}

// Next returns the following calendar date.
func (d Date) Next() Date {
	if d.Day < DaysInMonth(d.Month, d.Year) {
		return Date{d.Year, d.Month, d.Day + 1}
	}
	if d.Month < 12 {
		return Date{d.Year, d.Month + 1, 1}
	}
	return Date{d.Year + 1, 1, 1}
}

// Prev returns the preceding calendar date.
func (d Date) Prev() Date {
	if d.Day > 1 {
		return Date{d.Year, d.Month, d.Day - 1}
	}
	if d.Month > 1 {
		return Date{d.Year, d.Month - 1, DaysInMonth(d.Month-1, d.Year)}
	}
	return Date{d.Year - 1, 12, 31}
}

// Hours returns the hour component of a minutes-since-midnight value.
func Hours(minutes int) int {
	return minutes / MinutesPerHour
}

// Minutes returns the minute-within-hour component of a minutes-since-midnight value.
func Minutes(minutes int) int {
	return minutes % MinutesPerHour
}

// MinuteString formats a minutes-since-midnight value as HH:MM. Values at or
// past the end of the day (the "no more events today" sentinel) render as the
// midnight of the next day.
func MinuteString(minutes int) string {
	m := minutes % MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", Hours(m), Minutes(m))
}
