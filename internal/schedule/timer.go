package schedule

import (
	"fmt"

	"github.com/sweeney/lamp-timer/internal/calendar"
	"github.com/sweeney/lamp-timer/internal/solar"
)

// noMinute marks the minute cache and the manual override as empty.
const noMinute = -1

// endOfDay is where a non-occurring solar event sorts: after every event
// that does occur today. Reported as a next-transition it reads as midnight.
const endOfDay = calendar.MinutesPerDay

// lookahead bounds the next-day recursion when no day in sight has a usable
// event (for example both rules resolve against missing solar events).
const lookahead = 7

// Timer is the switch scheduler. It recomputes at most once per minute
// boundary, driven by Tick from the control loop.
type Timer struct {
	clock TimeSource
	sun   SolarSource
	relay Relay
	store Store

	weekday Rule
	weekend Rule

	switchedOn     bool
	nextSwitch     int
	minuteCache    int
	overrideMinute int
}

// New creates a Timer. Begin must be called before the first Tick.
func New(clock TimeSource, sun SolarSource, relay Relay, store Store) *Timer {
	return &Timer{
		clock:          clock,
		sun:            sun,
		relay:          relay,
		store:          store,
		minuteCache:    noMinute,
		overrideMinute: noMinute,
	}
}

// Begin loads the configured rules from the store and forces the relay to a
// known off state until the first Tick computes the real one.
func (t *Timer) Begin() error {
	weekday, err := t.store.WeekTimer()
	if err != nil {
		return fmt.Errorf("load week timer: %w", err)
	}
	weekend, err := t.store.WeekendTimer()
	if err != nil {
		return fmt.Errorf("load weekend timer: %w", err)
	}
	t.weekday = weekday
	t.weekend = weekend
	return t.relay.Set(false)
}

// Tick re-evaluates the schedule if the minute has changed since the last
// call. It reports whether the output state changed.
func (t *Timer) Tick() (changed bool, err error) {
	now := t.clock.Minutes()
	if now == t.minuteCache {
		return false, nil
	}
	t.minuteCache = now

	// An armed override is consumed when the overridden transition minute
	// arrives; from then on the schedule runs uninverted.
	if t.overrideMinute == now {
		t.overrideMinute = noMinute
	}

	times := t.sun.Times(t.clock.Date(), t.clock.DST())
	wasOn := t.switchedOn

	next, on := t.computeNext(t.clock.DayOfWeek(), now, times, 0)
	t.nextSwitch = next
	t.switchedOn = on
	if t.overrideMinute != noMinute && t.overrideMinute == t.nextSwitch {
		t.switchedOn = !t.switchedOn
	}

	if t.switchedOn != wasOn {
		if err := t.relay.Set(t.switchedOn); err != nil {
			return true, fmt.Errorf("drive relay: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// SwitchedOn returns the current computed output state.
func (t *Timer) SwitchedOn() bool {
	return t.switchedOn
}

// NextSwitchMinute returns the minute-of-day of the next scheduled
// transition. A value of 1440 means midnight (no further events today).
func (t *Timer) NextSwitchMinute() int {
	return t.nextSwitch
}

// ManualActive reports whether a manual override is armed.
func (t *Timer) ManualActive() bool {
	return t.overrideMinute != noMinute
}

// ManualSwitch toggles the manual override: when none is armed the state is
// inverted until the next scheduled transition; when one is armed it is
// disarmed and the pure schedule takes over again. Either way the next Tick
// recomputes immediately.
func (t *Timer) ManualSwitch() {
	if t.overrideMinute == noMinute {
		t.overrideMinute = t.nextSwitch
	} else {
		t.overrideMinute = noMinute
	}
	t.Invalidate()
}

// Invalidate drops the minute cache so the next Tick recomputes even within
// the same minute. Called after any mutation that affects the schedule.
func (t *Timer) Invalidate() {
	t.minuteCache = noMinute
}

// SetWeekTimer replaces the weekday rule and persists it.
func (t *Timer) SetWeekTimer(r Rule) error {
	if err := t.store.SetWeekTimer(r); err != nil {
		return fmt.Errorf("persist week timer: %w", err)
	}
	t.weekday = r
	t.Invalidate()
	return nil
}

// SetWeekendTimer replaces the weekend rule and persists it.
func (t *Timer) SetWeekendTimer(r Rule) error {
	if err := t.store.SetWeekendTimer(r); err != nil {
		return fmt.Errorf("persist weekend timer: %w", err)
	}
	t.weekend = r
	t.Invalidate()
	return nil
}

// WeekTimer returns the active weekday rule.
func (t *Timer) WeekTimer() Rule {
	return t.weekday
}

// WeekendTimer returns the active weekend rule.
func (t *Timer) WeekendTimer() Rule {
	return t.weekend
}

// resolve turns a Switch into an absolute minute for the day described by
// times. A solar event that does not occur resolves to endOfDay, which sorts
// it after every occurring event. Offsets are not wrapped: a switch derived
// from a solar event may land before 00:00 or after 23:59 and then simply
// never matches within the day, which is the intended degradation.
func resolve(s Switch, times solar.Times) int {
	switch s.Kind {
	case KindSunrise:
		if !times.HasSunrise() {
			return endOfDay
		}
		return times.Sunrise + int(s.Minutes)
	case KindSunset:
		if !times.HasSunset() {
			return endOfDay
		}
		return times.Sunset + int(s.Minutes)
	default:
		return int(s.Minutes)
	}
}

// computeNext computes the next transition minute and the on/off state at
// nowMinute for the given day of week. A single ordering rule covers both
// daytime (on before off) and overnight (off before on) schedules:
//
//	before the earlier event: on iff the earlier event is "off"
//	between the events:       on iff the earlier event is "on"
//	past both:                tomorrow's day class at minute 0
//
// When the on and off events resolve to the same minute the pair is treated
// as "off all day" and the next day is evaluated at midnight.
func (t *Timer) computeNext(dayOfWeek, nowMinute int, times solar.Times, depth int) (next int, on bool) {
	rule := t.weekend
	if IsWeekday(dayOfWeek) {
		rule = t.weekday
	}

	onMinute := resolve(rule.On, times)
	offMinute := resolve(rule.Off, times)
	if onMinute == offMinute {
		return endOfDay, false
	}

	early, late := onMinute, offMinute
	onIsEarlier := onMinute < offMinute
	if !onIsEarlier {
		early, late = offMinute, onMinute
	}

	switch {
	case nowMinute < early:
		return early, !onIsEarlier
	case nowMinute < late:
		return late, onIsEarlier
	default:
		if depth >= lookahead {
			return endOfDay, false
		}
		return t.computeNext((dayOfWeek+1)%7, 0, times, depth+1)
	}
}
