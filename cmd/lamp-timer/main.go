// Command lamp-timer switches a lamp relay on a weekly schedule with fixed
// or sunrise/sunset-relative switch times, driven by a battery-backed
// hardware clock.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/lamp-timer/internal/calendar"
	"github.com/sweeney/lamp-timer/internal/clock"
	"github.com/sweeney/lamp-timer/internal/config"
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

func main() {
	configPath := flag.String("config", "/etc/lamp-timer/config.yaml", "Path to the YAML config file (created with defaults if missing)")
	printState := flag.Bool("print-state", false, "Print clock and schedule state and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: load config: %v", err)
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, printState bool) error {
	store, err := persist.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer store.Close()

	src, err := rtc.NewDS3231(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("init hardware clock: %w", err)
	}
	defer src.Close()

	clk := clock.New(src, time.Now)
	if err := clk.Begin(); err != nil {
		return fmt.Errorf("start clock: %w", err)
	}

	sun := solar.New(cfg.Latitude, cfg.Longitude, cfg.UTCOffsetMinutes)

	// Print state mode
	if printState {
		return printCurrentState(clk, sun, store)
	}

	relay, err := gpio.NewRealRelay(cfg.RelayPin)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}
	defer relay.Close()

	timer := schedule.New(clk, sun, relay, store)
	if err := timer.Begin(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	// The rotary encoder is optional hardware: without it the lamp still
	// follows the schedule and the web UI covers manual overrides.
	var knob <-chan rotary.Event
	if enc, err := rotary.NewRealEncoder(cfg.RotaryPinA, cfg.RotaryPinB, cfg.RotaryPinButton); err != nil {
		log.Printf("rotary encoder unavailable: %v", err)
	} else {
		defer enc.Close()
		knob = enc.Events()
	}

	// Initialize MQTT (empty broker disables it)
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		real, err := mqtt.NewRealPublisher(cfg.Broker)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer real.Close()
		publisher = real
		mqttStatus = real
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:           cfg.PollMs,
		HeartbeatMs:      cfg.HeartbeatMs,
		Broker:           cfg.Broker,
		HTTPPort:         cfg.HTTPAddr,
		Latitude:         cfg.Latitude,
		Longitude:        cfg.Longitude,
		UTCOffsetMinutes: cfg.UTCOffsetMinutes,
	})
	tracker.SetRules(timer.WeekTimer(), timer.WeekendTimer())
	tracker.SetClock(clk.Date(), clk.Minutes(), clk.DST(), sun.Times(clk.Date(), clk.DST()))

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	// Mutations from HTTP handlers are queued here and applied by the loop.
	commands := make(chan web.Command, 4)

	// Start HTTP server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, commands)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: poll=%dms heartbeat=%dms broker=%q lat=%.4f lon=%.4f",
		cfg.PollMs, cfg.HeartbeatMs, cfg.Broker, cfg.Latitude, cfg.Longitude)

	ticker := time.NewTicker(time.Duration(cfg.PollMs) * time.Millisecond)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		clock:     clk,
		sun:       sun,
		timer:     timer,
		store:     store,
		publisher: publisher,
		mqttState: mqttStatus,
		tracker:   tracker,
		heartbeat: time.Duration(cfg.HeartbeatMs) * time.Millisecond,
		now:       time.Now,
	}
	return runLoop(l, ticker.C, sigCh, knob, commands)
}

// loop bundles the collaborators runLoop works with. Tests construct it over
// fakes and drive the channels by hand.
type loop struct {
	clock     *clock.Clock
	sun       *solar.Calculator
	timer     *schedule.Timer
	store     *persist.Store
	publisher mqtt.Publisher        // nil when MQTT is disabled
	mqttState mqtt.ConnectionStatus // nil when MQTT is disabled
	tracker   *status.Tracker
	heartbeat time.Duration // 0 disables heartbeats
	now       func() time.Time

	counts        status.Counts
	lastHeartbeat time.Time
}

func runLoop(l *loop, tick <-chan time.Time, sig <-chan os.Signal, knob <-chan rotary.Event, commands <-chan web.Command) error {
	l.lastHeartbeat = l.now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if l.publisher != nil {
				l.refreshTracker()
				snap := l.tracker.Snapshot()
				event := mqtt.SystemEvent{
					Timestamp:  l.now(),
					Event:      "SHUTDOWN",
					Reason:     signalName,
					Retained:   true,
					RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
				}
				if err := l.publisher.PublishSystem(event); err != nil {
					log.Printf("failed to publish shutdown event: %v", err)
				} else {
					log.Printf("published shutdown event")
				}
			}
			return nil

		case <-tick:
			l.step()

		case ev := <-knob:
			switch ev {
			case rotary.Press:
				log.Printf("rotary: press, toggling manual override")
				l.timer.ManualSwitch()
				l.counts.Overrides++
				l.step()
			default:
				// Turns and long presses drove the on-device menu on the
				// original hardware; the daemon has no display attached.
				log.Printf("rotary: %s ignored", ev)
			}

		case cmd := <-commands:
			err := l.apply(cmd)
			cmd.Reply(err)
			if err == nil {
				l.step()
			}
		}
	}
}

// step advances the clock and the scheduler by one poll and publishes any
// resulting transition. Also called after a mutation so the relay reacts
// without waiting for the next tick.
func (l *loop) step() {
	t := l.now()

	if err := l.clock.Refresh(); err != nil {
		log.Printf("clock refresh error: %v", err)
		return
	}

	changed, err := l.timer.Tick()
	if err != nil {
		log.Printf("scheduler error: %v", err)
	}

	if changed {
		if l.timer.SwitchedOn() {
			l.counts.SwitchOn++
		} else {
			l.counts.SwitchOff++
		}
		eventType := "OFF"
		if l.timer.SwitchedOn() {
			eventType = "ON"
		}
		next := calendar.MinuteString(l.timer.NextSwitchMinute())
		log.Printf("lamp %s (manual=%v next=%s)", eventType, l.timer.ManualActive(), next)
		if l.publisher != nil {
			event := mqtt.Event{
				Timestamp:  t,
				Type:       eventType,
				Manual:     l.timer.ManualActive(),
				NextSwitch: next,
			}
			if err := l.publisher.Publish(event); err != nil {
				log.Printf("publish error: %v", err)
				// Don't crash on publish failure
			}
		}
	}

	l.refreshTracker()

	// Check for heartbeat
	if l.heartbeat > 0 && t.Sub(l.lastHeartbeat) >= l.heartbeat {
		l.lastHeartbeat = t
		snap := l.tracker.Snapshot()
		hbEvent := mqtt.SystemEvent{
			Timestamp:  t,
			Event:      "HEARTBEAT",
			RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
		}
		log.Printf("heartbeat: uptime=%v on=%d off=%d overrides=%d",
			snap.Uptime().Round(time.Second), l.counts.SwitchOn, l.counts.SwitchOff, l.counts.Overrides)
		if l.publisher != nil {
			if err := l.publisher.PublishSystem(hbEvent); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

// refreshTracker pushes current clock and scheduler state into the tracker
// for HTTP and MQTT status consumers.
func (l *loop) refreshTracker() {
	times := l.sun.Times(l.clock.Date(), l.clock.DST())
	l.tracker.SetClock(l.clock.Date(), l.clock.Minutes(), l.clock.DST(), times)
	l.tracker.SetRules(l.timer.WeekTimer(), l.timer.WeekendTimer())
	l.tracker.Update(l.timer.SwitchedOn(), l.timer.ManualActive(), l.timer.NextSwitchMinute(), l.counts)
	if l.mqttState != nil {
		l.tracker.SetMQTTConnected(l.mqttState.IsConnected())
	}
}

// apply executes a queued web mutation. Validation happened at the HTTP
// edge; here only storage and hardware can fail.
func (l *loop) apply(cmd web.Command) error {
	switch cmd.Kind {
	case web.CmdSetWeekTimer:
		log.Printf("set week timer: %v", cmd.Rule)
		return l.timer.SetWeekTimer(cmd.Rule)
	case web.CmdSetWeekendTimer:
		log.Printf("set weekend timer: %v", cmd.Rule)
		return l.timer.SetWeekendTimer(cmd.Rule)
	case web.CmdSetDateTime:
		log.Printf("set date/time: %04d-%02d-%02d %s",
			cmd.Date.Year, cmd.Date.Month, cmd.Date.Day, calendar.MinuteString(cmd.Minutes))
		if err := l.clock.SetDateTime(cmd.Date, cmd.Minutes); err != nil {
			return err
		}
		l.timer.Invalidate()
		return nil
	case web.CmdManualSwitch:
		log.Printf("web: toggling manual override")
		l.timer.ManualSwitch()
		l.counts.Overrides++
		return nil
	case web.CmdSetScreenBlank:
		log.Printf("set screen blank timeout: %d min", cmd.Timeout)
		return l.store.SetScreenBlankTimeout(cmd.Timeout)
	default:
		return fmt.Errorf("unknown command kind %d", cmd.Kind)
	}
}

func printCurrentState(clk *clock.Clock, sun *solar.Calculator, store *persist.Store) error {
	times := sun.Times(clk.Date(), clk.DST())
	d := clk.Date()
	fmt.Printf("date: %04d-%02d-%02d (%s)\n", d.Year, d.Month, d.Day, calendar.DayName(clk.DayOfWeek()))
	fmt.Printf("time: %s DST=%v\n", calendar.MinuteString(clk.Minutes()), clk.DST())
	fmt.Printf("sunrise: %s\n", solarString(times.Sunrise))
	fmt.Printf("sunset: %s\n", solarString(times.Sunset))
	weekday, err := store.WeekTimer()
	if err != nil {
		return err
	}
	weekend, err := store.WeekendTimer()
	if err != nil {
		return err
	}
	fmt.Printf("week timer: %v\n", weekday)
	fmt.Printf("weekend timer: %v\n", weekend)
	return nil
}

func solarString(minute int) string {
	if minute == solar.None {
		return "none"
	}
	return calendar.MinuteString(minute)
}
