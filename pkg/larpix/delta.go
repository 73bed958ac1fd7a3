package larpix

import (
	"sort"
	"strings"
)

// Field names one configuration field spanning one or more registers.
type Field uint16

const (
	FieldGlobalThreshold Field = 1 << iota
	FieldCSAGainBypass
	FieldCSABypassSelect
	FieldCSAMonitorSelect
	FieldTestPulseEnable
	FieldTestPulseDAC
	FieldTestMode // test mode, cross-trigger, periodic reset and fifo diagnostic share a register
	FieldSampleCycles
	FieldTestBurstLength
	FieldADCBurstLength
	FieldChannelMask
	FieldExternalTriggerMask
	FieldResetCycles

	// AllFields selects every non-trim field.
	AllFields = FieldResetCycles<<1 - 1
)

var fieldRegisters = []struct {
	field Field
	name  string
	first int
	n     int
}{
	{FieldGlobalThreshold, "global_threshold", RegGlobalThreshold, 1},
	{FieldCSAGainBypass, "csa_gain_bypass", RegCSAGainBypass, 1},
	{FieldCSABypassSelect, "csa_bypass_select", RegCSABypassSelect, 4},
	{FieldCSAMonitorSelect, "csa_monitor_select", RegCSAMonitorSelect, 4},
	{FieldTestPulseEnable, "test_pulse_enable", RegTestPulseEnable, 4},
	{FieldTestPulseDAC, "test_pulse_dac", RegTestPulseDAC, 1},
	{FieldTestMode, "test_mode", RegTestMode, 1},
	{FieldSampleCycles, "sample_cycles", RegSampleCycles, 1},
	{FieldTestBurstLength, "test_burst_length", RegTestBurstLength, 2},
	{FieldADCBurstLength, "adc_burst_length", RegADCBurstLength, 1},
	{FieldChannelMask, "channel_mask", RegChannelMask, 4},
	{FieldExternalTriggerMask, "external_trigger_mask", RegExternalTriggerMask, 4},
	{FieldResetCycles, "reset_cycles", RegResetCycles, 3},
}

// Delta names exactly which configuration fields a write pushes to the chip.
type Delta struct {
	Fields Field
	Trims  []int // channels whose pixel trim register is written
}

// Fields returns a Delta writing the given fields.
func Fields(f Field) Delta {
	return Delta{Fields: f}
}

// TrimDelta returns a Delta writing the pixel trim registers of the given channels.
func TrimDelta(channels ...int) Delta {
	return Delta{Trims: append([]int(nil), channels...)}
}

// FullDelta returns a Delta writing every register.
func FullDelta() Delta {
	d := Delta{Fields: AllFields, Trims: make([]int, NumChannels)}
	for ch := range d.Trims {
		d.Trims[ch] = ch
	}
	return d
}

// Has reports whether f is part of the Delta.
func (d Delta) Has(f Field) bool {
	return d.Fields&f == f
}

// IsZero reports whether the Delta writes nothing.
func (d Delta) IsZero() bool {
	return d.Fields == 0 && len(d.Trims) == 0
}

// Registers returns the sorted, de-duplicated register addresses covered by the Delta.
func (d Delta) Registers() []int {
	seen := make(map[int]bool)
	var regs []int
	add := func(addr int) {
		if !seen[addr] {
			seen[addr] = true
			regs = append(regs, addr)
		}
	}
	for _, ch := range d.Trims {
		if ch >= 0 && ch < NumChannels {
			add(ch)
		}
	}
	for _, fr := range fieldRegisters {
		if d.Fields&fr.field == 0 {
			continue
		}
		for i := 0; i < fr.n; i++ {
			add(fr.first + i)
		}
	}
	sort.Ints(regs)
	return regs
}

func (d Delta) String() string {
	var names []string
	for _, fr := range fieldRegisters {
		if d.Fields&fr.field != 0 {
			names = append(names, fr.name)
		}
	}
	if len(d.Trims) > 0 {
		names = append(names, "pixel_trim")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
