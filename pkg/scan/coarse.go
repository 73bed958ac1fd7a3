package scan

import (
	"fmt"

	"github.com/itohio/golarpix/pkg/larpix"
)

// CoarseScan sweeps the global threshold of chip over r from the highest value
// down with only channel enabled. The first step is preceded by one buffer
// flush and a settle pause. Points are returned in sweep order (descending).
//
// On any failure no result is returned and the chip keeps whatever
// configuration was last pushed.
func (s *Scanner) CoarseScan(chip *larpix.Chip, channel int, r Range) (Result, error) {
	if err := validateChannel(channel); err != nil {
		return Result{}, err
	}
	if err := r.Validate(); err != nil {
		return Result{}, err
	}

	steps := r.Steps()
	sweep := make([]int, len(steps))
	for i, v := range steps {
		sweep[len(steps)-1-i] = v
	}

	chip.Config.DisableChannels()
	chip.Config.EnableChannels(channel)
	if err := s.pushVerified(chip, larpix.Fields(larpix.FieldChannelMask)); err != nil {
		return Result{}, err
	}

	Logf("Coarse scan of %v channel %d over %v", chip, channel, r)
	result := Result{Channel: channel, Points: make([]Point, 0, len(sweep))}
	for i, threshold := range sweep {
		chip.Config.GlobalThreshold = threshold
		if err := s.push(chip, larpix.Fields(larpix.FieldGlobalThreshold)); err != nil {
			return Result{}, err
		}
		if i == 0 {
			if err := s.flush(chip); err != nil {
				return Result{}, err
			}
		}

		p, err := s.measure(chip, threshold)
		if err != nil {
			return Result{}, err
		}
		result.Points = append(result.Points, p)
	}

	return result, nil
}

// CoarseScanChannels runs CoarseScan for each channel in the given order and
// stops at the first failure.
func (s *Scanner) CoarseScanChannels(chip *larpix.Chip, channels []int, r Range) (Results, error) {
	results := make(Results, len(channels))
	for _, ch := range channels {
		res, err := s.CoarseScan(chip, ch, r)
		if err != nil {
			return nil, fmt.Errorf("coarse scan of channel %d: %w", ch, err)
		}
		results[ch] = res
	}
	return results, nil
}
