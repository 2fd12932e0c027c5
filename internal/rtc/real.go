//go:build linux

package rtc

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sweeney/lamp-timer/internal/calendar"
)

// DS3231 register map, as used by the original board.
const (
	ds3231Addr = 0x68

	regSeconds = 0x00
	regStatus  = 0x0F

	// Oscillator Stop Flag: set when the clock lost power.
	statusOSF = 0x80
)

// DS3231 is the real time source, a DS3231 chip on an I2C bus.
type DS3231 struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// NewDS3231 opens the named I2C bus ("" selects the first available one) and
// returns a Source backed by the DS3231 at its fixed address.
func NewDS3231(busName string) (*DS3231, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}
	return &DS3231{
		bus: bus,
		dev: &i2c.Dev{Bus: bus, Addr: ds3231Addr},
	}, nil
}

// Read returns the current raw date and time from the chip.
func (r *DS3231) Read() (Reading, error) {
	buf := make([]byte, 7)
	if err := r.dev.Tx([]byte{regSeconds}, buf); err != nil {
		return Reading{}, fmt.Errorf("read clock registers: %w", err)
	}
	return Reading{
		MinutesSinceMidnight: bcd2bin(buf[1]) + calendar.MinutesPerHour*bcd2bin(buf[2]&0x3F),
		Day:                  bcd2bin(buf[4]),
		Month:                bcd2bin(buf[5] & 0x1F),
		Year:                 bcd2bin(buf[6]) + 2000,
	}, nil
}

// Write sets the hardware clock. Seconds and the day-of-week register are
// zeroed; day-of-week is always derived in software. The lost-power flag is
// cleared afterwards.
func (r *DS3231) Write(reading Reading) error {
	regs := []byte{
		regSeconds,
		bin2bcd(0), // seconds
		bin2bcd(reading.MinutesSinceMidnight % calendar.MinutesPerHour),
		bin2bcd(reading.MinutesSinceMidnight / calendar.MinutesPerHour),
		bin2bcd(0), // day of week, unused
		bin2bcd(reading.Day),
		bin2bcd(reading.Month),
		bin2bcd(reading.Year - 2000),
	}
	if err := r.dev.Tx(regs, nil); err != nil {
		return fmt.Errorf("write clock registers: %w", err)
	}

	status := make([]byte, 1)
	if err := r.dev.Tx([]byte{regStatus}, status); err != nil {
		return fmt.Errorf("read status register: %w", err)
	}
	if err := r.dev.Tx([]byte{regStatus, status[0] &^ statusOSF}, nil); err != nil {
		return fmt.Errorf("clear OSF: %w", err)
	}
	return nil
}

// LostPower reports the chip's Oscillator Stop Flag.
func (r *DS3231) LostPower() (bool, error) {
	status := make([]byte, 1)
	if err := r.dev.Tx([]byte{regStatus}, status); err != nil {
		return false, fmt.Errorf("read status register: %w", err)
	}
	return status[0]&statusOSF != 0, nil
}

// Close releases the I2C bus.
func (r *DS3231) Close() error {
	return r.bus.Close()
}
