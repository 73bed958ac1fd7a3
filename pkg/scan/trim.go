package scan

import (
	"fmt"
	"sort"

	"github.com/itohio/golarpix/pkg/larpix"
)

// TrimScan sweeps the pixel trim of channel upward from 0 with the global
// threshold held at seed. The sweep ends TrimMargin values past the trim the
// channel had on entry, and the result holds one point per trim value swept.
func (s *Scanner) TrimScan(chip *larpix.Chip, channel, seed int) (Result, error) {
	if err := validateChannel(channel); err != nil {
		return Result{}, err
	}
	if seed < 0 || seed > larpix.MaxRegisterValue {
		return Result{}, fmt.Errorf("%w: seed threshold %d", ErrInvalidRange, seed)
	}
	initial := chip.Config.PixelTrims[channel]
	r := Range{Min: 0, Max: initial + s.opts.TrimMargin, Step: 1}
	if err := r.Validate(); err != nil {
		return Result{}, err
	}

	chip.Config.DisableChannels()
	chip.Config.EnableChannels(channel)
	chip.Config.GlobalThreshold = seed
	if err := s.pushVerified(chip, larpix.Fields(larpix.FieldChannelMask|larpix.FieldGlobalThreshold)); err != nil {
		return Result{}, err
	}

	Logf("Trim scan of %v channel %d at threshold %d over %v", chip, channel, seed, r)
	steps := r.Steps()
	result := Result{Channel: channel, Points: make([]Point, 0, len(steps))}
	for i, trim := range steps {
		chip.Config.PixelTrims[channel] = trim
		if err := s.push(chip, larpix.TrimDelta(channel)); err != nil {
			return Result{}, err
		}
		if i == 0 {
			if err := s.flush(chip); err != nil {
				return Result{}, err
			}
		}

		p, err := s.measure(chip, trim)
		if err != nil {
			return Result{}, err
		}
		result.Points = append(result.Points, p)
	}

	return result, nil
}

// TrimScanChannels seeds a trim scan of each requested channel from its coarse
// scan. Channels are visited in ascending order; channels without a coarse
// scan are skipped. The first failure stops the run.
func (s *Scanner) TrimScanChannels(chip *larpix.Chip, coarse Results, channels []int) (Results, error) {
	sorted := append([]int(nil), channels...)
	sort.Ints(sorted)

	results := make(Results, len(sorted))
	for _, ch := range sorted {
		c, ok := coarse[ch]
		if !ok {
			Logf("No coarse scan for channel %d, skipping", ch)
			continue
		}
		seed, err := LocateOnset(c)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch, err)
		}
		res, err := s.TrimScan(chip, ch, seed)
		if err != nil {
			return nil, fmt.Errorf("trim scan of channel %d: %w", ch, err)
		}
		results[ch] = res
	}
	return results, nil
}
