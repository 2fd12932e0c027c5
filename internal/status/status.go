// Package status provides a thread-safe status tracker for the lamp-timer daemon.
// It is designed to be read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/lamp-timer/internal/calendar"
	"github.com/sweeney/lamp-timer/internal/schedule"
	"github.com/sweeney/lamp-timer/internal/solar"
)

// Counts tallies switch activity since startup.
type Counts struct {
	SwitchOn  int
	SwitchOff int
	Overrides int
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs           int64
	HeartbeatMs      int64
	Broker           string
	HTTPPort         string
	Latitude         float64
	Longitude        float64
	UTCOffsetMinutes int
}

// Snapshot is a point-in-time view of daemon state. It is a value type,
// safe to use after the lock is released.
type Snapshot struct {
	LampOn         bool
	ManualOverride bool
	NextSwitch     int
	Date           calendar.Date
	Minutes        int
	DST            bool
	Sun            solar.Times
	Weekday        schedule.Rule
	Weekend        schedule.Rule
	Counts         Counts
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the switch state and counters.
// Called from runLoop on every tick.
func (t *Tracker) Update(lampOn, manual bool, nextSwitch int, counts Counts) {
	t.mu.Lock()
	t.snap.LampOn = lampOn
	t.snap.ManualOverride = manual
	t.snap.NextSwitch = nextSwitch
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetClock sets the calendar view and today's solar times.
func (t *Tracker) SetClock(date calendar.Date, minutes int, dst bool, sun solar.Times) {
	t.mu.Lock()
	t.snap.Date = date
	t.snap.Minutes = minutes
	t.snap.DST = dst
	t.snap.Sun = sun
	t.mu.Unlock()
}

// SetRules sets the configured switch rules.
func (t *Tracker) SetRules(weekday, weekend schedule.Rule) {
	t.mu.Lock()
	t.snap.Weekday = weekday
	t.snap.Weekend = weekend
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
