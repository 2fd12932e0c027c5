//go:build !linux

package rtc

import "errors"

// DS3231 is not available on non-Linux platforms.
type DS3231 struct{}

// NewDS3231 returns an error on non-Linux platforms.
func NewDS3231(busName string) (*DS3231, error) {
	return nil, errors.New("rtc: not supported on this platform (requires Linux)")
}

func (r *DS3231) Read() (Reading, error) {
	return Reading{}, errors.New("rtc: not supported")
}

func (r *DS3231) Write(Reading) error {
	return errors.New("rtc: not supported")
}

func (r *DS3231) LostPower() (bool, error) {
	return false, errors.New("rtc: not supported")
}

func (r *DS3231) Close() error {
	return nil
}
