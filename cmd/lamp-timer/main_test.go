package main

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/lamp-timer/internal/calendar"
	"github.com/sweeney/lamp-timer/internal/clock"
	"github.com/sweeney/lamp-timer/internal/gpio"
	"github.com/sweeney/lamp-timer/internal/mqtt"
	"github.com/sweeney/lamp-timer/internal/persist"
	"github.com/sweeney/lamp-timer/internal/rotary"
	"github.com/sweeney/lamp-timer/internal/rtc"
	"github.com/sweeney/lamp-timer/internal/schedule"
	"github.com/sweeney/lamp-timer/internal/solar"
	"github.com/sweeney/lamp-timer/internal/status"
	"github.com/sweeney/lamp-timer/internal/web"
)

// A winter Wednesday: no DST, so raw readings equal local time.
var wednesday = calendar.New(2024, 1, 17)

var errRelayStuck = errors.New("relay stuck")

var (
	testWeekday = schedule.Rule{On: schedule.FixedAt(600), Off: schedule.FixedAt(1320)}
	testWeekend = schedule.Rule{On: schedule.FixedAt(600), Off: schedule.FixedAt(1320)}
)

// scriptedSource feeds one reading per Read call and sticks at the last one,
// so the loop goroutine never races the test over shared state. Write adopts
// the written reading as current, like the real chip.
type scriptedSource struct {
	readings []rtc.Reading
	call     int
	writes   []rtc.Reading
}

func (s *scriptedSource) Read() (rtc.Reading, error) {
	r := s.readings[s.call]
	if s.call < len(s.readings)-1 {
		s.call++
	}
	return r, nil
}

func (s *scriptedSource) Write(r rtc.Reading) error {
	s.writes = append(s.writes, r)
	s.readings = []rtc.Reading{r}
	s.call = 0
	return nil
}

func (s *scriptedSource) LostPower() (bool, error) { return false, nil }

func (s *scriptedSource) Close() error { return nil }

// minuteReadings returns n consecutive one-minute readings starting at the
// given minute, rolling the date across midnight.
func minuteReadings(date calendar.Date, startMinute, n int) []rtc.Reading {
	out := make([]rtc.Reading, n)
	d, m := date, startMinute
	for i := range out {
		out[i] = rtc.Reading{Year: d.Year, Month: d.Month, Day: d.Day, MinutesSinceMidnight: m}
		m++
		if m == calendar.MinutesPerDay {
			m = 0
			d = d.Next()
		}
	}
	return out
}

// repeatReading returns n copies of the same reading, for tests where the
// clock must not advance between ticks.
func repeatReading(date calendar.Date, minute, n int) []rtc.Reading {
	out := make([]rtc.Reading, n)
	for i := range out {
		out[i] = rtc.Reading{Year: date.Year, Month: date.Month, Day: date.Day, MinutesSinceMidnight: minute}
	}
	return out
}

// fakeWallClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's
// goroutine). The 2-second step keeps every Refresh past the read rate limit.
func fakeWallClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// newTestLoop builds a loop over a scripted time source, a fake relay and a
// fresh settings store. pub may be nil to run without MQTT.
func newTestLoop(t *testing.T, readings []rtc.Reading, weekday, weekend schedule.Rule, pub *mqtt.FakePublisher, heartbeat time.Duration) (*loop, *scriptedSource, *gpio.FakeRelay) {
	t.Helper()

	store, err := persist.Open(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.SetWeekTimer(weekday); err != nil {
		t.Fatalf("seed week timer: %v", err)
	}
	if err := store.SetWeekendTimer(weekend); err != nil {
		t.Fatalf("seed weekend timer: %v", err)
	}

	src := &scriptedSource{readings: readings}
	wall := fakeWallClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 2*time.Second)
	clk := clock.New(src, wall)
	if err := clk.Begin(); err != nil {
		t.Fatalf("clock begin: %v", err)
	}

	relay := gpio.NewFakeRelay()
	sun := solar.New(52.097105, 5.068294, 60)
	timer := schedule.New(clk, sun, relay, store)
	if err := timer.Begin(); err != nil {
		t.Fatalf("timer begin: %v", err)
	}

	l := &loop{
		clock:     clk,
		sun:       sun,
		timer:     timer,
		store:     store,
		tracker:   status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{}),
		heartbeat: heartbeat,
		now:       wall,
	}
	if pub != nil {
		l.publisher = pub
		l.mqttState = pub
	}
	return l, src, relay
}

// loopChans drives a running loop. The tick, knob and command channels are
// unbuffered so every send completes only once the loop has taken the value,
// which keeps the ordering of sends deterministic.
type loopChans struct {
	tick chan time.Time
	knob chan rotary.Event
	cmds chan web.Command
	sig  chan os.Signal
	err  chan error
}

func startLoop(l *loop) *loopChans {
	c := &loopChans{
		tick: make(chan time.Time),
		knob: make(chan rotary.Event),
		cmds: make(chan web.Command),
		sig:  make(chan os.Signal, 1),
		err:  make(chan error, 1),
	}
	go func() { c.err <- runLoop(l, c.tick, c.sig, c.knob, c.cmds) }()
	return c
}

func (c *loopChans) ticks(n int) {
	for i := 0; i < n; i++ {
		c.tick <- time.Time{}
	}
}

func (c *loopChans) stop(t *testing.T, sig os.Signal) error {
	t.Helper()
	c.sig <- sig
	select {
	case err := <-c.err:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop did not exit")
		return nil
	}
}

func TestRunLoopNoTransitionWhenStable(t *testing.T) {
	// Minutes 300..304 are well inside the off period.
	pub := mqtt.NewFakePublisher()
	l, _, relay := newTestLoop(t, minuteReadings(wednesday, 300, 8), testWeekday, testWeekend, pub, 0)

	c := startLoop(l)
	c.ticks(4)
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 lamp events, got %d", len(pub.Events))
	}
	if relay.On {
		t.Error("relay should stay off in the off period")
	}

	// Should have exactly one system event: SHUTDOWN
	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	if pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN event, got %q", pub.SystemEvents[0].Event)
	}
}

func TestRunLoopSwitchesOnAtScheduledMinute(t *testing.T) {
	// Begin reads 598; the four ticks see 599, 600, 601, 602.
	pub := mqtt.NewFakePublisher()
	l, _, relay := newTestLoop(t, minuteReadings(wednesday, 598, 8), testWeekday, testWeekend, pub, 0)

	c := startLoop(l)
	c.ticks(4)
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if !relay.On {
		t.Error("relay should be on after the on minute")
	}
	if len(pub.Events) != 1 {
		t.Fatalf("expected 1 lamp event, got %d", len(pub.Events))
	}
	ev := pub.Events[0]
	if ev.Type != "ON" {
		t.Errorf("event type: got %q, want %q", ev.Type, "ON")
	}
	if ev.Manual {
		t.Error("scheduled transition should not be flagged manual")
	}
	if ev.NextSwitch != "22:00" {
		t.Errorf("next switch: got %q, want %q", ev.NextSwitch, "22:00")
	}
}

func TestRunLoopSwitchesOffAtScheduledMinute(t *testing.T) {
	// Starting inside the on period, the first tick raises the relay from the
	// known off state; the off minute then drops it again.
	pub := mqtt.NewFakePublisher()
	l, _, relay := newTestLoop(t, minuteReadings(wednesday, 1318, 8), testWeekday, testWeekend, pub, 0)

	c := startLoop(l)
	c.ticks(4)
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if relay.On {
		t.Error("relay should be off after the off minute")
	}
	if len(pub.Events) != 2 {
		t.Fatalf("expected 2 lamp events, got %d", len(pub.Events))
	}
	if pub.Events[0].Type != "ON" || pub.Events[1].Type != "OFF" {
		t.Errorf("event types: got %q, %q, want ON, OFF", pub.Events[0].Type, pub.Events[1].Type)
	}
}

func TestRunLoopManualOverride(t *testing.T) {
	// A constant reading keeps the press clear of any minute boundary.
	pub := mqtt.NewFakePublisher()
	l, _, relay := newTestLoop(t, repeatReading(wednesday, 300, 16), testWeekday, testWeekend, pub, 0)

	c := startLoop(l)
	c.ticks(2)
	c.knob <- rotary.Press
	c.ticks(2)
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if !relay.On {
		t.Error("relay should be on after a manual press in the off period")
	}
	if len(pub.Events) != 1 {
		t.Fatalf("expected 1 lamp event, got %d", len(pub.Events))
	}
	ev := pub.Events[0]
	if ev.Type != "ON" {
		t.Errorf("event type: got %q, want %q", ev.Type, "ON")
	}
	if !ev.Manual {
		t.Error("override transition should be flagged manual")
	}

	snap := l.tracker.Snapshot()
	if snap.Counts.Overrides != 1 {
		t.Errorf("override count: got %d, want 1", snap.Counts.Overrides)
	}
	if !snap.ManualOverride {
		t.Error("tracker should report an armed override")
	}
}

func TestRunLoopSecondPressCancelsOverride(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	l, _, relay := newTestLoop(t, repeatReading(wednesday, 300, 16), testWeekday, testWeekend, pub, 0)

	c := startLoop(l)
	c.ticks(1)
	c.knob <- rotary.Press
	c.knob <- rotary.Press
	c.ticks(1)
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if relay.On {
		t.Error("relay should be off again after the second press")
	}
	if got := relay.Transitions(); got != 2 {
		t.Errorf("relay transitions: got %d, want 2", got)
	}
	if snap := l.tracker.Snapshot(); snap.ManualOverride {
		t.Error("override should be disarmed after the second press")
	}
}

func TestRunLoopRotaryTurnsIgnored(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	l, _, relay := newTestLoop(t, repeatReading(wednesday, 300, 16), testWeekday, testWeekend, pub, 0)

	c := startLoop(l)
	c.ticks(1)
	c.knob <- rotary.Left
	c.knob <- rotary.Right
	c.knob <- rotary.LongPress
	c.ticks(1)
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 0 {
		t.Errorf("expected 0 lamp events, got %d", len(pub.Events))
	}
	if relay.On {
		t.Error("relay should be untouched by turns and long presses")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// The fake wall clock advances a few seconds per tick, so a 30-second
	// heartbeat interval fires within a handful of ticks.
	pub := mqtt.NewFakePublisher()
	l, _, _ := newTestLoop(t, repeatReading(wednesday, 300, 32), testWeekday, testWeekend, pub, 30*time.Second)

	c := startLoop(l)
	c.ticks(20)
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats, shutdowns int
	for _, se := range pub.SystemEvents {
		switch se.Event {
		case "HEARTBEAT":
			heartbeats++
			if len(se.RawPayload) == 0 {
				t.Error("HEARTBEAT event missing status payload")
			}
		case "SHUTDOWN":
			shutdowns++
		}
	}
	if heartbeats == 0 {
		t.Error("expected at least one HEARTBEAT event")
	}
	if shutdowns != 1 {
		t.Errorf("expected 1 SHUTDOWN event, got %d", shutdowns)
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	l, _, _ := newTestLoop(t, repeatReading(wednesday, 300, 8), testWeekday, testWeekend, pub, 0)

	c := startLoop(l)
	c.ticks(2)
	if err := c.stop(t, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	se := pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", se.Event)
	}
	if se.Reason != "SIGINT" {
		t.Errorf("expected reason SIGINT, got %q", se.Reason)
	}
	if !se.Retained {
		t.Error("expected Retained=true for SHUTDOWN")
	}
	if len(se.RawPayload) == 0 {
		t.Error("SHUTDOWN event missing status payload")
	}
}

func TestRunLoopShutdownSIGTERM(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	l, _, _ := newTestLoop(t, repeatReading(wednesday, 300, 8), testWeekday, testWeekend, pub, 0)

	c := startLoop(l)
	c.ticks(2)
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	se := pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN, got %q", se.Event)
	}
	if se.Reason != "SIGTERM" {
		t.Errorf("expected reason SIGTERM, got %q", se.Reason)
	}
}

func TestRunLoopWithoutPublisher(t *testing.T) {
	// MQTT disabled: transitions must still drive the relay.
	l, _, relay := newTestLoop(t, minuteReadings(wednesday, 598, 8), testWeekday, testWeekend, nil, 0)

	c := startLoop(l)
	c.ticks(4)
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if !relay.On {
		t.Error("relay should be on after the on minute")
	}
}

func TestRunLoopSetWeekTimerCommand(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	l, _, _ := newTestLoop(t, repeatReading(wednesday, 300, 16), testWeekday, testWeekend, pub, 0)

	rule := schedule.Rule{On: schedule.AtSunset(30), Off: schedule.FixedAt(1350)}
	c := startLoop(l)
	c.ticks(1)
	c.cmds <- web.Command{Kind: web.CmdSetWeekTimer, Rule: rule}
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if got := l.timer.WeekTimer(); got != rule {
		t.Errorf("week timer: got %v, want %v", got, rule)
	}
	stored, err := l.store.WeekTimer()
	if err != nil {
		t.Fatalf("read stored week timer: %v", err)
	}
	if stored != rule {
		t.Errorf("stored week timer: got %v, want %v", stored, rule)
	}
}

func TestRunLoopSetDateTimeCommand(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	l, src, relay := newTestLoop(t, repeatReading(wednesday, 300, 8), testWeekday, testWeekend, pub, 0)

	// Jump into the middle of the on period of the next day.
	thursday := calendar.New(2024, 1, 18)
	c := startLoop(l)
	c.ticks(1)
	c.cmds <- web.Command{Kind: web.CmdSetDateTime, Date: thursday, Minutes: 630}
	c.ticks(1)
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(src.writes) != 1 {
		t.Fatalf("expected 1 hardware write, got %d", len(src.writes))
	}
	want := rtc.Reading{Year: 2024, Month: 1, Day: 18, MinutesSinceMidnight: 630}
	if src.writes[0] != want {
		t.Errorf("hardware write: got %+v, want %+v", src.writes[0], want)
	}
	if !relay.On {
		t.Error("relay should follow the schedule at the new time")
	}
}

func TestRunLoopScreenBlankCommand(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	l, _, _ := newTestLoop(t, repeatReading(wednesday, 300, 8), testWeekday, testWeekend, pub, 0)

	c := startLoop(l)
	c.ticks(1)
	c.cmds <- web.Command{Kind: web.CmdSetScreenBlank, Timeout: 10}
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	got, err := l.store.ScreenBlankTimeout()
	if err != nil {
		t.Fatalf("read screen blank timeout: %v", err)
	}
	if got != 10 {
		t.Errorf("screen blank timeout: got %d, want 10", got)
	}
}

func TestRunLoopRelayErrorContinues(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	l, _, relay := newTestLoop(t, minuteReadings(wednesday, 598, 8), testWeekday, testWeekend, pub, 0)
	relay.SetError = errRelayStuck

	c := startLoop(l)
	c.ticks(4)
	if err := c.stop(t, syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	// SHUTDOWN should still be published despite the relay fault.
	found := false
	for _, se := range pub.SystemEvents {
		if se.Event == "SHUTDOWN" {
			found = true
		}
	}
	if !found {
		t.Error("expected SHUTDOWN system event after relay errors")
	}
}
