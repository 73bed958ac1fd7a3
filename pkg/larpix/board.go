package larpix

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/itohio/golarpix/pkg/config"
)

// DefaultPhysicsThreshold is the global threshold applied by SetPhysics when none is given.
const DefaultPhysicsThreshold = 60

// boardPresets lists the chips mounted on known test boards.
var boardPresets = map[string][]config.ChipEntry{
	"pcb-5": {{ID: 246}, {ID: 245}, {ID: 252}, {ID: 243}},
	"pcb-4": {{ID: 207}, {ID: 63}, {ID: 250}, {ID: 249}},
}

// Boards returns the names of the known board presets.
func Boards() []string {
	names := make([]string, 0, len(boardPresets))
	for name := range boardPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BoardChips builds the chip list described by cfg. An explicit chip list wins
// over the preset. An unknown board without a chip list addresses every chip
// id on io chain 0.
func BoardChips(cfg config.BoardConfig) []*Chip {
	entries := cfg.Chips
	if len(entries) == 0 {
		preset, ok := boardPresets[cfg.Name]
		if !ok {
			log.Printf("Unknown board %q, addressing all chip ids", cfg.Name)
			entries = make([]config.ChipEntry, 0, MaxRegisterValue+1)
			for id := 0; id <= MaxRegisterValue; id++ {
				entries = append(entries, config.ChipEntry{ID: id})
			}
		} else {
			entries = preset
		}
	}

	chips := make([]*Chip, 0, len(entries))
	for _, e := range entries {
		chips = append(chips, NewChip(e.ID, e.IOChain))
	}
	return chips
}

// SelectChip returns the chip under test.
func SelectChip(chips []*Chip, index int) (*Chip, error) {
	if index < 0 || index >= len(chips) {
		return nil, fmt.Errorf("chip index %d out of range [0, %d)", index, len(chips))
	}
	return chips[index], nil
}

// SilenceChips raises the global threshold of every chip to the maximum so
// that none of them produce noise.
func SilenceChips(ctrl Controller, chips []*Chip) error {
	for _, chip := range chips {
		chip.Config.GlobalThreshold = MaxRegisterValue
		if err := ctrl.WriteConfiguration(chip, Fields(FieldGlobalThreshold)); err != nil {
			return fmt.Errorf("failed to silence %v: %w", chip, err)
		}
	}
	return nil
}

// SetPhysics puts a chip into its data-taking configuration: internal bypass
// and periodic reset on, global threshold at threshold. A threshold of zero
// or less uses DefaultPhysicsThreshold.
func SetPhysics(ctrl Controller, chip *Chip, threshold int) error {
	if threshold <= 0 {
		threshold = DefaultPhysicsThreshold
	}
	if err := checkRange("global_threshold", threshold, MaxRegisterValue); err != nil {
		return fmt.Errorf("failed to configure %v for physics: %w", chip, err)
	}
	chip.Config.InternalBypass = true
	chip.Config.PeriodicReset = true
	chip.Config.GlobalThreshold = threshold
	d := Fields(FieldCSAGainBypass | FieldTestMode | FieldGlobalThreshold)
	if err := ctrl.WriteConfiguration(chip, d); err != nil {
		return fmt.Errorf("failed to configure %v for physics: %w", chip, err)
	}
	return nil
}

// FlushStale drains whatever the board buffered before the caller started
// listening and drops it from the read history.
func FlushStale(ctrl Controller, chip *Chip, d time.Duration) error {
	if _, err := ctrl.Run(chip, d, "flush stale data"); err != nil {
		return fmt.Errorf("failed to flush stale data: %w", err)
	}
	ctrl.ClearReads()
	return nil
}
