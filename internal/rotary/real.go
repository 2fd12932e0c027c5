//go:build linux

package rotary

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const longPressPollInterval = 100 * time.Millisecond

// RealEncoder reads the knob through Linux GPIO character device edge events.
type RealEncoder struct {
	chip   *gpiocdev.Chip
	lineA  *gpiocdev.Line
	lineB  *gpiocdev.Line
	button *gpiocdev.Line

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	mu  sync.Mutex
	dec decoder
	btn buttonTracker
}

// NewRealEncoder claims the encoder pins on actual Raspberry Pi hardware.
func NewRealEncoder(pinA, pinB, pinButton int) (*RealEncoder, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	e := &RealEncoder{
		chip:   chip,
		events: make(chan Event, 1),
		done:   make(chan struct{}),
		btn:    buttonTracker{now: time.Now},
	}

	// The detent level is high, so turns register on rising edges only.
	e.lineA, err = chip.RequestLine(pinA, gpiocdev.AsInput, gpiocdev.WithPullUp,
		gpiocdev.WithRisingEdge, gpiocdev.WithEventHandler(e.handleA))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request encoder pin %d: %w", pinA, err)
	}

	e.lineB, err = chip.RequestLine(pinB, gpiocdev.AsInput, gpiocdev.WithPullUp,
		gpiocdev.WithRisingEdge, gpiocdev.WithEventHandler(e.handleB))
	if err != nil {
		e.lineA.Close()
		chip.Close()
		return nil, fmt.Errorf("request encoder pin %d: %w", pinB, err)
	}

	// The push switch is active-low: a falling edge is a press.
	e.button, err = chip.RequestLine(pinButton, gpiocdev.AsInput, gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges, gpiocdev.WithEventHandler(e.handleButton))
	if err != nil {
		e.lineA.Close()
		e.lineB.Close()
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pinButton, err)
	}

	e.wg.Add(1)
	go e.watchLongPress()

	return e, nil
}

// Events returns the single-slot event channel.
func (e *RealEncoder) Events() <-chan Event {
	return e.events
}

func (e *RealEncoder) handleA(gpiocdev.LineEvent) {
	bRaw, err := e.lineB.Value()
	if err != nil {
		return
	}

	e.mu.Lock()
	ev, ok := e.dec.risingA(true, bRaw != 0)
	e.mu.Unlock()
	if ok {
		e.emit(ev)
	}
}

func (e *RealEncoder) handleB(gpiocdev.LineEvent) {
	aRaw, err := e.lineA.Value()
	if err != nil {
		return
	}

	e.mu.Lock()
	ev, ok := e.dec.risingB(aRaw != 0, true)
	e.mu.Unlock()
	if ok {
		e.emit(ev)
	}
}

func (e *RealEncoder) handleButton(le gpiocdev.LineEvent) {
	e.mu.Lock()
	var (
		ev Event
		ok bool
	)
	if le.Type == gpiocdev.LineEventFallingEdge {
		e.btn.press()
	} else {
		ev, ok = e.btn.release()
	}
	e.mu.Unlock()
	if ok {
		e.emit(ev)
	}
}

// watchLongPress reports a long press while the button is still held.
func (e *RealEncoder) watchLongPress() {
	defer e.wg.Done()

	ticker := time.NewTicker(longPressPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.mu.Lock()
			ev, ok := e.btn.poll()
			e.mu.Unlock()
			if ok {
				e.emit(ev)
			}
		}
	}
}

// emit sends without blocking; a stale unconsumed event is kept and the new
// one dropped.
func (e *RealEncoder) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

// Close releases GPIO resources.
func (e *RealEncoder) Close() error {
	close(e.done)
	e.wg.Wait()

	var errs []error
	for _, line := range []*gpiocdev.Line{e.lineA, e.lineB, e.button} {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.chip != nil {
		if err := e.chip.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
