package scan

import (
	"fmt"

	"github.com/itohio/golarpix/pkg/larpix"
)

// Pulse describes a run of internal test pulses on one channel.
type Pulse struct {
	Channel   int
	Count     int
	DAC       int // test pulse amplitude
	Threshold int // global threshold during the run
}

// InjectPulses pulses one channel Count times with cross-trigger enabled so
// the other channels are read out with every pulse. Each pulse connects the
// test line and then disconnects it; the disconnect is the pulse edge and is
// followed by a listen window. The controller's whole read history is
// returned without aggregation.
func (s *Scanner) InjectPulses(chip *larpix.Chip, p Pulse) ([]larpix.Read, error) {
	if err := validateChannel(p.Channel); err != nil {
		return nil, err
	}
	if p.Count < 0 {
		return nil, fmt.Errorf("%w: pulse count %d", ErrInvalidRange, p.Count)
	}
	if p.DAC < 0 || p.DAC > larpix.MaxRegisterValue {
		return nil, fmt.Errorf("%w: pulse DAC %d", ErrInvalidRange, p.DAC)
	}
	if p.Threshold < 0 || p.Threshold > larpix.MaxRegisterValue {
		return nil, fmt.Errorf("%w: threshold %d", ErrInvalidRange, p.Threshold)
	}

	chip.Config.GlobalThreshold = p.Threshold
	chip.Config.TestPulseDAC = p.DAC
	chip.Config.CrossTrigger = true
	if err := s.push(chip, larpix.Fields(larpix.FieldGlobalThreshold|larpix.FieldTestPulseDAC|larpix.FieldTestMode)); err != nil {
		return nil, err
	}

	Logf("Pulsing %v channel %d %d times", chip, p.Channel, p.Count)
	enable := larpix.Fields(larpix.FieldTestPulseEnable)
	for i := 0; i < p.Count; i++ {
		chip.Config.TestPulse[p.Channel] = true
		if err := s.push(chip, enable); err != nil {
			return nil, err
		}
		chip.Config.TestPulse[p.Channel] = false
		if err := s.ctrl.WriteReadConfiguration(chip, enable, s.opts.PulseListen); err != nil {
			return nil, transportErr("write "+enable.String(), err)
		}
	}

	return s.ctrl.Reads(), nil
}
