// Package rotary handles the rotary encoder input knob.
// The real implementation uses Linux GPIO character device edge events.
// The fake implementation allows testing without hardware.
//
// The decode follows the interrupt-based rotary encoder sketch by Simon
// Merrett, https://gist.github.com/Xplorer001/b7bff3744fa10647b185ab4043fbcc93
package rotary

import "time"

// Event is a single user input.
type Event uint8

const (
	Left Event = iota
	Right
	Press
	LongPress
)

func (e Event) String() string {
	switch e {
	case Left:
		return "left"
	case Right:
		return "right"
	case Press:
		return "press"
	case LongPress:
		return "long-press"
	}
	return "unknown"
}

// Encoder delivers knob events. Events are sent on a single-slot channel:
// an event that arrives before the previous one was consumed is dropped.
type Encoder interface {
	Events() <-chan Event
	Close() error
}

const (
	debounceTime  = 500 * time.Millisecond
	longPressTime = 2500 * time.Millisecond
)

// decoder turns rising edges on the two quadrature lines into turn events.
// A turn only counts when both lines are back at the detent level and the
// opposite line flagged the transition, which filters contact bounce.
type decoder struct {
	expectA bool
	expectB bool
}

// risingA processes a rising edge on line A given the current line levels.
func (d *decoder) risingA(aHigh, bHigh bool) (Event, bool) {
	if aHigh && bHigh && d.expectA {
		d.expectA, d.expectB = false, false
		return Right, true
	}
	if aHigh && !bHigh {
		d.expectB = true
	}
	return 0, false
}

// risingB processes a rising edge on line B given the current line levels.
func (d *decoder) risingB(aHigh, bHigh bool) (Event, bool) {
	if aHigh && bHigh && d.expectB {
		d.expectA, d.expectB = false, false
		return Left, true
	}
	if bHigh && !aHigh {
		d.expectA = true
	}
	return 0, false
}

// buttonTracker turns raw press and release edges into Press and LongPress
// events. The release decides between the two unless the long press already
// fired while the button was held.
type buttonTracker struct {
	now        func() time.Time
	down       bool
	longFired  bool
	pressedAt  time.Time
	lastChange time.Time
}

func (b *buttonTracker) press() {
	t := b.now()
	if b.down || t.Sub(b.lastChange) < debounceTime {
		return
	}
	b.down = true
	b.longFired = false
	b.pressedAt = t
	b.lastChange = t
}

func (b *buttonTracker) release() (Event, bool) {
	if !b.down {
		return 0, false
	}
	b.down = false
	b.lastChange = b.now()
	if b.longFired {
		return 0, false
	}
	return Press, true
}

// poll reports a long press once the hold time is exceeded.
func (b *buttonTracker) poll() (Event, bool) {
	if b.down && !b.longFired && b.now().Sub(b.pressedAt) >= longPressTime {
		b.longFired = true
		return LongPress, true
	}
	return 0, false
}

// Pin definitions (BCM numbering)
const (
	PinA      = 23 // Quadrature line A (right)
	PinB      = 24 // Quadrature line B (left)
	PinButton = 25 // Push switch
)
