// Package schedule decides when the lamp is switched on and off. It resolves
// the configured weekday and weekend rules against the clock and the solar
// calculator, computes the next transition, and drives the relay when the
// state changes.
//
// Like the rest of the core it is single-threaded: every method must be
// called from the control loop only.
package schedule

import (
	"fmt"

	"github.com/sweeney/lamp-timer/internal/calendar"
	"github.com/sweeney/lamp-timer/internal/solar"
)

// Kind selects how a switch event's minute value is interpreted. The numeric
// values are persisted; do not reorder.
type Kind uint8

const (
	// KindFixed switches at a fixed minute-of-day.
	KindFixed Kind = 0
	// KindSunrise switches at sunrise plus the offset.
	KindSunrise Kind = 1
	// KindSunset switches at sunset plus the offset.
	KindSunset Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindFixed:
		return "fixed"
	case KindSunrise:
		return "sunrise"
	case KindSunset:
		return "sunset"
	}
	return "unknown"
}

// Valid reports whether k is one of the defined kinds. Reads from persistent
// storage go through this check.
func (k Kind) Valid() bool {
	return k <= KindSunset
}

// Switch is a single schedule event: a fixed clock time, or an offset
// relative to sunrise or sunset. Minutes is the fixed minute-of-day for
// KindFixed and a signed offset otherwise.
type Switch struct {
	Kind    Kind
	Minutes int16
}

// FixedAt returns a Switch at a fixed minute-of-day.
func FixedAt(minuteOfDay int) Switch {
	return Switch{Kind: KindFixed, Minutes: int16(minuteOfDay)}
}

// AtSunrise returns a Switch at sunrise plus the given offset in minutes.
func AtSunrise(offsetMinutes int) Switch {
	return Switch{Kind: KindSunrise, Minutes: int16(offsetMinutes)}
}

// AtSunset returns a Switch at sunset plus the given offset in minutes.
func AtSunset(offsetMinutes int) Switch {
	return Switch{Kind: KindSunset, Minutes: int16(offsetMinutes)}
}

func (s Switch) String() string {
	if s.Kind == KindFixed {
		return calendar.MinuteString(int(s.Minutes))
	}
	return fmt.Sprintf("%s%+d", s.Kind, s.Minutes)
}

// Rule pairs the on and off events for one day class.
type Rule struct {
	On  Switch
	Off Switch
}

func (r Rule) String() string {
	return fmt.Sprintf("on %s off %s", r.On, r.Off)
}

// DefaultWeekday and DefaultWeekend are the first-programming schedule, also
// used whenever persistent storage cannot be trusted: on a quarter hour
// after sunset, off at a fixed late-evening time.
var (
	DefaultWeekday = Rule{On: AtSunset(15), Off: FixedAt(22*60 + 15)}
	DefaultWeekend = Rule{On: AtSunset(15), Off: FixedAt(22*60 + 45)}
)

// TimeSource is the clock surface the timer needs.
type TimeSource interface {
	Minutes() int
	Date() calendar.Date
	DayOfWeek() int
	DST() bool
}

// SolarSource provides sunrise/sunset for a date.
type SolarSource interface {
	Times(date calendar.Date, isDST bool) solar.Times
}

// Relay drives the physical output.
type Relay interface {
	Set(on bool) error
}

// Store persists the configured rules. Implemented by internal/persist.
type Store interface {
	WeekTimer() (Rule, error)
	SetWeekTimer(Rule) error
	WeekendTimer() (Rule, error)
	SetWeekendTimer(Rule) error
}

// IsWeekday reports whether the switch rules for weekdays apply to the given
// day of the week. Friday belongs to the weekend class: its evening runs on
// the weekend schedule.
func IsWeekday(dayOfWeek int) bool {
	return dayOfWeek > calendar.Sunday && dayOfWeek < calendar.Friday
}
