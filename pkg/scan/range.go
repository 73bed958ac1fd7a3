package scan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/itohio/golarpix/pkg/larpix"
)

// Range is a half-open integer sweep range [Min, Max) visited every Step.
type Range struct {
	Min  int
	Max  int
	Step int
}

// Steps returns the values of the range in ascending order, or nil when the
// range does not pass Validate.
func (r Range) Steps() []int {
	if r.Validate() != nil {
		return nil
	}
	steps := make([]int, 0, (r.Max-r.Min+r.Step-1)/r.Step)
	for v := r.Min; v < r.Max; v += r.Step {
		steps = append(steps, v)
	}
	return steps
}

// Validate checks that the range is sweepable on an 8-bit register.
func (r Range) Validate() error {
	if r.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %d", ErrInvalidRange, r.Step)
	}
	if r.Min >= r.Max {
		return fmt.Errorf("%w: [%d, %d)", ErrEmptySweep, r.Min, r.Max)
	}
	if r.Min < 0 || r.Max-1 > larpix.MaxRegisterValue {
		return fmt.Errorf("%w: [%d, %d) exceeds register range [0, %d]", ErrInvalidRange, r.Min, r.Max, larpix.MaxRegisterValue)
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d:%d", r.Min, r.Max, r.Step)
}

// ParseRange parses a "min:max:step" string into a Range.
func ParseRange(s string) (Range, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Range{}, fmt.Errorf("invalid range format %q: expected min:max:step", s)
	}

	min, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Range{}, fmt.Errorf("invalid min value %q: %w", parts[0], err)
	}

	max, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Range{}, fmt.Errorf("invalid max value %q: %w", parts[1], err)
	}

	step, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return Range{}, fmt.Errorf("invalid step value %q: %w", parts[2], err)
	}

	r := Range{Min: min, Max: max, Step: step}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func validateChannel(channel int) error {
	if channel < 0 || channel >= larpix.NumChannels {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}
	return nil
}
