package rtc

import "github.com/sweeney/lamp-timer/internal/calendar"

// Fake is a test double time source whose reading is set directly or stepped
// forward with Advance.
type Fake struct {
	// Now is the reading returned by Read.
	Now Reading

	// Lost, if true, is reported by LostPower until the next Write.
	Lost bool

	// Writes records every Reading passed to Write.
	Writes []Reading

	// ReadError and WriteError, if set, are returned by the corresponding calls.
	ReadError  error
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFake creates a Fake positioned at the given reading.
func NewFake(now Reading) *Fake {
	return &Fake{Now: now}
}

// Read returns the current fake reading.
func (f *Fake) Read() (Reading, error) {
	if f.ReadError != nil {
		return Reading{}, f.ReadError
	}
	return f.Now, nil
}

// Write records the reading, adopts it as the current time and clears the
// lost-power flag, mirroring the real chip's OSF handling.
func (f *Fake) Write(r Reading) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, r)
	f.Now = r
	f.Lost = false
	return nil
}

// LostPower reports the scripted lost-power state.
func (f *Fake) LostPower() (bool, error) {
	return f.Lost, nil
}

// Close marks the source as closed.
func (f *Fake) Close() error {
	f.Closed = true
	return nil
}

// Advance steps the fake clock forward by the given number of minutes,
// rolling the date as needed.
func (f *Fake) Advance(minutes int) {
	f.Now.MinutesSinceMidnight += minutes
	for f.Now.MinutesSinceMidnight >= calendar.MinutesPerDay {
		f.Now.MinutesSinceMidnight -= calendar.MinutesPerDay
		next := calendar.New(f.Now.Year, f.Now.Month, f.Now.Day).Next()
		f.Now.Year, f.Now.Month, f.Now.Day = next.Year, next.Month, next.Day
	}
}
