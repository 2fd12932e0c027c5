// Package clock tracks the calendar date, time-of-day and the
// daylight-saving state machine on top of the raw hardware time source.
// Everything it reports is in local, DST-adjusted terms; the raw source
// never knows about DST.
//
// Not safe for concurrent use: the control loop is the only caller.
package clock

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/lamp-timer/internal/calendar"
	"github.com/sweeney/lamp-timer/internal/rtc"
)

// readInterval bounds how often the hardware source is actually read;
// between reads the last sample is served.
const readInterval = time.Second

// DefaultReading is the date and time the clock is reset to when the
// hardware reports that it lost backup power.
var DefaultReading = rtc.Reading{Year: 2018, Month: 1, Day: 1, MinutesSinceMidnight: 0}

// Clock wraps a raw time source and runs the DST state machine.
type Clock struct {
	src rtc.Source
	now func() time.Time // wall clock used only for read rate limiting

	raw      rtc.Reading
	dst      bool
	lastRead time.Time
}

// New creates a Clock over the given source. now is the wall clock used to
// rate-limit hardware reads; pass time.Now outside of tests.
func New(src rtc.Source, now func() time.Time) *Clock {
	return &Clock{src: src, now: now}
}

// Begin initializes the clock. If the source lost backup power it is reset
// to DefaultReading first; the condition is logged once here and not
// re-checked on later refreshes. The DST phase is re-derived from the date,
// never loaded from storage.
func (c *Clock) Begin() error {
	lost, err := c.src.LostPower()
	if err != nil {
		return fmt.Errorf("check lost power: %w", err)
	}
	if lost {
		log.Printf("clock: time source lost power, resetting to %04d-%02d-%02d",
			DefaultReading.Year, DefaultReading.Month, DefaultReading.Day)
		if err := c.src.Write(DefaultReading); err != nil {
			return fmt.Errorf("reset time source: %w", err)
		}
	}
	reading, err := c.src.Read()
	if err != nil {
		return fmt.Errorf("read time source: %w", err)
	}
	c.raw = reading
	c.lastRead = c.now()
	c.deriveDST()
	return nil
}

// Refresh re-reads the hardware source, rate-limited to once per
// readInterval, and applies the DST transition rules. On a read error the
// previous sample is retained.
func (c *Clock) Refresh() error {
	if c.now().Sub(c.lastRead) < readInterval {
		return nil
	}
	c.lastRead = c.now()
	return c.refresh()
}

func (c *Clock) refresh() error {
	reading, err := c.src.Read()
	if err != nil {
		return fmt.Errorf("read time source: %w", err)
	}
	c.raw = reading
	c.checkTransition()
	return nil
}

// Minutes returns the DST-adjusted minutes since midnight.
func (c *Clock) Minutes() int {
	if c.dst {
		return (c.raw.MinutesSinceMidnight + calendar.MinutesPerHour) % calendar.MinutesPerDay
	}
	return c.raw.MinutesSinceMidnight
}

// Date returns the DST-adjusted calendar date; the +60 minute offset can
// carry the date across midnight.
func (c *Clock) Date() calendar.Date {
	d := calendar.New(c.raw.Year, c.raw.Month, c.raw.Day)
	if c.dst && c.raw.MinutesSinceMidnight+calendar.MinutesPerHour >= calendar.MinutesPerDay {
		return d.Next()
	}
	return d
}

// DayOfWeek returns the DST-adjusted day of the week, 0 = Sunday.
func (c *Clock) DayOfWeek() int {
	return c.Date().DayOfWeek()
}

// DST reports whether daylight saving time is currently active.
func (c *Clock) DST() bool {
	return c.dst
}

// SetDateTime sets the hardware clock from local (DST-aware) values. The
// caller validates ranges at the edit boundary; this method only converts
// to raw time, writes it and re-derives the DST phase.
func (c *Clock) SetDateTime(date calendar.Date, minutes int) error {
	raw := rtc.Reading{Year: date.Year, Month: date.Month, Day: date.Day, MinutesSinceMidnight: minutes}
	if c.dst {
		if minutes >= calendar.MinutesPerHour {
			raw.MinutesSinceMidnight = minutes - calendar.MinutesPerHour
		} else {
			// Local 00:xx during DST is raw 23:xx of the previous day.
			prev := date.Prev()
			raw.Year, raw.Month, raw.Day = prev.Year, prev.Month, prev.Day
			raw.MinutesSinceMidnight = minutes + calendar.MinutesPerDay - calendar.MinutesPerHour
		}
	}
	if err := c.src.Write(raw); err != nil {
		return fmt.Errorf("write time source: %w", err)
	}
	reading, err := c.src.Read()
	if err != nil {
		return fmt.Errorf("read time source: %w", err)
	}
	c.raw = reading
	c.deriveDST()
	return nil
}

// checkTransition applies the two seasonal rules. Each can fire at most once
// per calendar day: the flip itself moves the reported hour out of the rule's
// window.
func (c *Clock) checkTransition() {
	d := c.Date()
	hour := calendar.Hours(c.Minutes())
	switch {
	case c.dst && d.Month == 10 && d.Day >= 25 && d.DayOfWeek() == calendar.Sunday && hour == 3:
		// Last Sunday of October, 03:00 daylight time becomes 02:00 standard.
		c.dst = false
	case !c.dst && d.Month == 3 && d.Day >= 25 && d.DayOfWeek() == calendar.Sunday && hour == 2:
		// Last Sunday of March, 02:00 standard time becomes 03:00 daylight.
		c.dst = true
	}
}

// deriveDST recomputes the DST phase from the raw date alone, used at boot
// and after SetDateTime. Within a transition Sunday the whole day is treated
// as post-transition.
func (c *Clock) deriveDST() {
	c.dst = false
	d := c.Date()
	switch {
	case d.Month < 3 || d.Month > 10:
		c.dst = false
	case d.Month > 3 && d.Month < 10:
		c.dst = true
	default:
		// Most recent Sunday on or before today; the transition happened if
		// it falls on the 25th or later.
		lastSunday := d.Day - d.DayOfWeek()
		if d.Month == 3 {
			c.dst = lastSunday >= 25
		} else {
			c.dst = lastSunday < 25
		}
	}
}
