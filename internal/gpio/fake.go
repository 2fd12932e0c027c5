package gpio

// FakeRelay is a test double that records every state driven to the output.
type FakeRelay struct {
	// On is the current relay state.
	On bool

	// Sets records each value passed to Set, in order.
	Sets []bool

	// Closed tracks if Close was called
	Closed bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeRelay creates a FakeRelay in the off state.
func NewFakeRelay() *FakeRelay {
	return &FakeRelay{}
}

// Set records and adopts the new state.
func (f *FakeRelay) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	f.Sets = append(f.Sets, on)
	return nil
}

// Close switches the fake off and marks it as closed.
func (f *FakeRelay) Close() error {
	f.On = false
	f.Closed = true
	return nil
}

// Transitions counts the state changes recorded so far.
func (f *FakeRelay) Transitions() int {
	n := 0
	for i := 1; i < len(f.Sets); i++ {
		if f.Sets[i] != f.Sets[i-1] {
			n++
		}
	}
	return n
}
