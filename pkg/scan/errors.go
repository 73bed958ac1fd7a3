package scan

import (
	"errors"
	"fmt"
)

// ErrEmptySweep is returned when a requested sweep has no steps.
var ErrEmptySweep = errors.New("sweep range contains no steps")

// ErrInvalidRange is returned when a sweep range has a non-positive step or
// values that do not fit the 8-bit register.
var ErrInvalidRange = errors.New("invalid sweep range")

// ErrInvalidChannel is returned for channels outside 0..31.
var ErrInvalidChannel = errors.New("invalid channel")

// ErrNoOnset is returned by LocateOnset when no step of the scan saw a packet.
var ErrNoOnset = errors.New("no noise onset found")

// ErrNoisyAtStart is returned by LocateOnset when the highest threshold
// scanned is already noisy, so no quiet threshold precedes the onset.
var ErrNoisyAtStart = errors.New("noisy at first scanned threshold")

// TransportError wraps a failure of the chip controller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// VerifyError is returned when a register read back from the chip differs
// from the value just written.
type VerifyError struct {
	Register int
	Want     byte
	Got      byte
	Missing  bool
}

func (e *VerifyError) Error() string {
	if e.Missing {
		return fmt.Sprintf("register %d: no value read back", e.Register)
	}
	return fmt.Sprintf("register %d: wrote 0x%02x, read back 0x%02x", e.Register, e.Want, e.Got)
}

func transportErr(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}
