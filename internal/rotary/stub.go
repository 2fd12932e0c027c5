//go:build !linux

package rotary

import "errors"

// RealEncoder is not available on non-Linux platforms.
type RealEncoder struct{}

// NewRealEncoder returns an error on non-Linux platforms.
func NewRealEncoder(pinA, pinB, pinButton int) (*RealEncoder, error) {
	return nil, errors.New("rotary: not supported on this platform (requires Linux)")
}

// Events is not implemented on non-Linux platforms.
func (e *RealEncoder) Events() <-chan Event {
	return nil
}

// Close is not implemented on non-Linux platforms.
func (e *RealEncoder) Close() error {
	return nil
}
