package rotary

// FakeEncoder is a test double driven by calling Emit.
type FakeEncoder struct {
	events chan Event

	// Closed tracks if Close was called
	Closed bool

	// Dropped counts events that found the slot occupied.
	Dropped int
}

// NewFakeEncoder creates a FakeEncoder with the same single-slot channel
// behaviour as the real one.
func NewFakeEncoder() *FakeEncoder {
	return &FakeEncoder{events: make(chan Event, 1)}
}

// Events returns the single-slot event channel.
func (f *FakeEncoder) Events() <-chan Event {
	return f.events
}

// Emit delivers an event, dropping it if the slot is occupied.
func (f *FakeEncoder) Emit(ev Event) {
	select {
	case f.events <- ev:
	default:
		f.Dropped++
	}
}

// Close marks the encoder as closed.
func (f *FakeEncoder) Close() error {
	f.Closed = true
	return nil
}
