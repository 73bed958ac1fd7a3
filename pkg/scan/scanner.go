// Package scan implements the threshold and trim calibration procedures for
// LArPix chips.
//
// A scan sweeps one control value (the global threshold or one pixel trim),
// pushes it to the chip, collects one measurement window per step and reduces
// the packets to a Point. All work happens on the calling goroutine and every
// configuration change is pushed before the next window starts.
package scan

import (
	"time"

	"github.com/itohio/golarpix/pkg/config"
	"github.com/itohio/golarpix/pkg/larpix"
	"github.com/itohio/golarpix/pkg/timeutil"
)

// Read labels.
const (
	LabelClearBuffer   = "clear buffer"
	LabelScanThreshold = "scan threshold"
)

const (
	DefaultTrimMargin  = 5
	DefaultWindow      = time.Second
	DefaultFlush       = time.Second
	DefaultSettle      = time.Second
	DefaultPulseListen = 100 * time.Millisecond
)

// Options controls scan timing.
type Options struct {
	Window      time.Duration // length of one measurement window
	Flush       time.Duration // length of the one-time buffer flush run
	Settle      time.Duration // pause after the flush run
	TrimMargin  int           // trim values swept past the initial trim; zero or less means default
	PulseListen time.Duration // read window after each pulse edge
	Verify      bool          // read back the channel mask after pushing it
}

// DefaultOptions returns the reference timing.
func DefaultOptions() Options {
	return Options{
		Window:      DefaultWindow,
		Flush:       DefaultFlush,
		Settle:      DefaultSettle,
		TrimMargin:  DefaultTrimMargin,
		PulseListen: DefaultPulseListen,
	}
}

// OptionsFromConfig builds Options from the scan and pulser configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Window:      cfg.Scan.Window,
		Flush:       cfg.Scan.Flush,
		Settle:      cfg.Scan.Settle,
		TrimMargin:  cfg.Scan.TrimMargin,
		PulseListen: cfg.Pulser.Listen,
		Verify:      cfg.Scan.Verify,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Window <= 0 {
		o.Window = def.Window
	}
	if o.Flush <= 0 {
		o.Flush = def.Flush
	}
	if o.Settle <= 0 {
		o.Settle = def.Settle
	}
	if o.TrimMargin <= 0 {
		o.TrimMargin = def.TrimMargin
	}
	if o.PulseListen <= 0 {
		o.PulseListen = def.PulseListen
	}
	return o
}

// Scanner runs calibration scans against one controller.
// A Scanner must not be shared between goroutines.
type Scanner struct {
	ctrl  larpix.Controller
	clock timeutil.Clock
	opts  Options
}

// New creates a Scanner. A nil clock uses the real clock. Unset options fall
// back to the defaults.
func New(ctrl larpix.Controller, clock timeutil.Clock, opts Options) *Scanner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Scanner{
		ctrl:  ctrl,
		clock: clock,
		opts:  opts.withDefaults(),
	}
}

// Options returns the effective options.
func (s *Scanner) Options() Options {
	return s.opts
}

// Window clears the controller's read history, runs one collection cycle and
// returns its packets in arrival order. No packets is a valid result.
func (s *Scanner) Window(chip *larpix.Chip, label string) ([]larpix.Packet, error) {
	s.ctrl.ClearReads()
	read, err := s.ctrl.Run(chip, s.opts.Window, label)
	if err != nil {
		return nil, transportErr("run "+label, err)
	}
	return read.Packets, nil
}

// flush runs the one-time buffer flush and waits for the chip to settle.
func (s *Scanner) flush(chip *larpix.Chip) error {
	if _, err := s.ctrl.Run(chip, s.opts.Flush, LabelClearBuffer); err != nil {
		return transportErr("run "+LabelClearBuffer, err)
	}
	s.clock.Sleep(s.opts.Settle)
	return nil
}

func (s *Scanner) push(chip *larpix.Chip, d larpix.Delta) error {
	if err := s.ctrl.WriteConfiguration(chip, d); err != nil {
		return transportErr("write "+d.String(), err)
	}
	return nil
}

// pushVerified pushes d and, when verification is enabled, reads the
// configuration back and compares every register covered by d.
func (s *Scanner) pushVerified(chip *larpix.Chip, d larpix.Delta) error {
	if err := s.push(chip, d); err != nil {
		return err
	}
	if !s.opts.Verify {
		return nil
	}

	regs, err := s.ctrl.ReadConfiguration(chip)
	if err != nil {
		return transportErr("read configuration", err)
	}
	want := chip.Config.RegisterData()
	for _, addr := range d.Registers() {
		got, ok := regs[addr]
		if !ok {
			return &VerifyError{Register: addr, Want: want[addr], Missing: true}
		}
		if got != want[addr] {
			return &VerifyError{Register: addr, Want: want[addr], Got: got}
		}
	}
	return nil
}

// measure runs one window and reduces it to a point.
func (s *Scanner) measure(chip *larpix.Chip, value int) (Point, error) {
	packets, err := s.Window(chip, LabelScanThreshold)
	if err != nil {
		return Point{}, err
	}
	st := Aggregate(packets)
	Logf("%d %d %.2f %.2f", value, st.Count, st.Mean, st.Deviation)
	return st.point(value), nil
}
