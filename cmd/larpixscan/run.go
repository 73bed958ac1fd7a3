package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/itohio/golarpix/pkg/config"
	"github.com/itohio/golarpix/pkg/larpix"
	"github.com/itohio/golarpix/pkg/report"
	"github.com/itohio/golarpix/pkg/scan"
	"github.com/itohio/golarpix/pkg/timeutil"
)

// Mode selects what a run does.
type Mode string

const (
	ModeCoarse    Mode = "coarse"
	ModeTrim      Mode = "trim"
	ModeCalibrate Mode = "calibrate"
	ModePulse     Mode = "pulse"
)

func parseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCoarse, ModeTrim, ModeCalibrate, ModePulse:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q: expected coarse, trim, calibrate or pulse", s)
}

// run bootstraps the board and performs one scan session on a connected controller.
func run(cfg *config.Config, ctrl larpix.Controller, clock timeutil.Clock, mode Mode, physics bool) (*report.Session, error) {
	chips := larpix.BoardChips(cfg.Board)
	chip, err := larpix.SelectChip(chips, cfg.Board.ChipIndex)
	if err != nil {
		return nil, err
	}

	// Quiet the whole board before touching the chip under test
	if err := larpix.SilenceChips(ctrl, chips); err != nil {
		return nil, err
	}
	if err := larpix.FlushStale(ctrl, chip, cfg.Scan.Flush); err != nil {
		return nil, err
	}

	session := report.NewSession(cfg.Board.Name, chip, string(mode), clock)
	scanner := scan.New(ctrl, clock, scan.OptionsFromConfig(cfg))
	coarseRange := scan.Range{Min: cfg.Scan.CoarseMin, Max: cfg.Scan.CoarseMax, Step: cfg.Scan.CoarseStep}

	switch mode {
	case ModeCoarse, ModeCalibrate:
		session.Coarse, err = scanner.CoarseScanChannels(chip, cfg.Scan.Channels, coarseRange)
		if err != nil {
			return nil, err
		}
		if mode == ModeCoarse {
			break
		}
		channels := trimmable(session, cfg.Scan.Channels)
		session.Trim, err = scanner.TrimScanChannels(chip, session.Coarse, channels)
		if err != nil {
			return nil, err
		}
	case ModeTrim:
		// Trim around the configured physics threshold without a coarse scan
		session.Trim = make(scan.Results, len(cfg.Scan.Channels))
		for _, ch := range cfg.Scan.Channels {
			res, err := scanner.TrimScan(chip, ch, cfg.Scan.PhysicsThreshold)
			if err != nil {
				return nil, fmt.Errorf("trim scan of channel %d: %w", ch, err)
			}
			session.Trim[ch] = res
		}
	case ModePulse:
		ctrl.ClearReads()
		reads, err := scanner.InjectPulses(chip, scan.Pulse{
			Channel:   cfg.Pulser.Channel,
			Count:     cfg.Pulser.Count,
			DAC:       cfg.Pulser.DAC,
			Threshold: cfg.Pulser.Threshold,
		})
		if err != nil {
			return nil, err
		}
		session.AddPulses(reads)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	if physics {
		if err := larpix.SetPhysics(ctrl, chip, cfg.Scan.PhysicsThreshold); err != nil {
			return nil, err
		}
		log.Printf("%v left in physics configuration at threshold %d", chip, chip.Config.GlobalThreshold)
	}

	session.Finish(clock)
	return session, nil
}

// trimmable returns the channels whose coarse scan has a noise onset. The
// others are recorded in the session as skipped so their coarse scan is kept.
func trimmable(session *report.Session, channels []int) []int {
	out := make([]int, 0, len(channels))
	for _, ch := range channels {
		res, ok := session.Coarse[ch]
		if !ok {
			continue
		}
		if _, err := scan.LocateOnset(res); err != nil {
			if !errors.Is(err, scan.ErrNoOnset) && !errors.Is(err, scan.ErrNoisyAtStart) {
				// Let the trim scan report it
				out = append(out, ch)
				continue
			}
			log.Printf("Skipping trim scan of channel %d: %v", ch, err)
			session.Skip(ch, err)
			continue
		}
		out = append(out, ch)
	}
	return out
}
