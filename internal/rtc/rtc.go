// Package rtc provides the raw hardware time source with hardware
// abstraction. The real implementation talks to a DS3231 over I2C; the fake
// allows testing without hardware. The package hands out raw readings only;
// daylight-saving interpretation belongs to internal/clock.
package rtc

// Reading is one raw sample from the time source. No sub-minute resolution
// is carried; the chip's seconds register is ignored.
type Reading struct {
	Year                 int
	Month                int
	Day                  int
	MinutesSinceMidnight int
}

// Source reads and writes the hardware clock.
type Source interface {
	// Read returns the current raw date and time.
	Read() (Reading, error)

	// Write sets the hardware clock and clears any pending lost-power flag.
	Write(Reading) error

	// LostPower reports whether the chip lost its backup supply since the
	// last Write. A true result means the reading is garbage.
	LostPower() (bool, error)

	// Close releases bus resources.
	Close() error
}

func bcd2bin(v byte) int { return int(v) - 6*int(v>>4) }

func bin2bcd(v int) byte { return byte(v + 6*(v/10)) }
