package larpix

import "fmt"

const (
	// NumChannels is the number of pixel channels on one chip.
	NumChannels = 32
	// NumRegisters is the number of 8-bit configuration registers on one chip.
	NumRegisters = 63
	// MaxRegisterValue is the largest value an 8-bit register field can hold.
	MaxRegisterValue = 0xFF
)

// Register addresses.
const (
	RegGlobalThreshold     = 32
	RegCSAGainBypass       = 33
	RegCSABypassSelect     = 34 // 34..37
	RegCSAMonitorSelect    = 38 // 38..41
	RegTestPulseEnable     = 42 // 42..45
	RegTestPulseDAC        = 46
	RegTestMode            = 47 // test mode, cross-trigger, periodic reset, fifo diagnostic
	RegSampleCycles        = 48
	RegTestBurstLength     = 49 // 49..50
	RegADCBurstLength      = 51
	RegChannelMask         = 52 // 52..55
	RegExternalTriggerMask = 56 // 56..59
	RegResetCycles         = 60 // 60..62
)

// Test modes stored in the low two bits of RegTestMode.
const (
	TestOff  = 0x0
	TestUART = 0x1
	TestFIFO = 0x2
)

// Chip is one LArPix chip on a daisy chain.
type Chip struct {
	ID      int
	IOChain int
	Config  *ChipConfig
}

// NewChip creates a chip with power-on default configuration.
func NewChip(id, ioChain int) *Chip {
	return &Chip{
		ID:      id,
		IOChain: ioChain,
		Config:  NewChipConfig(),
	}
}

func (c *Chip) String() string {
	return fmt.Sprintf("chip %d (io chain %d)", c.ID, c.IOChain)
}

// ChipConfig is the desired configuration state of one chip. It is mutated in
// place by the caller and written to the device with an explicit Delta.
type ChipConfig struct {
	PixelTrims      [NumChannels]int
	GlobalThreshold int

	CSAGain          bool
	CSABypass        bool
	InternalBypass   bool
	CSABypassSelect  [NumChannels]bool
	CSAMonitorSelect [NumChannels]bool

	// TestPulse connects the internal test-pulse line to a channel. The
	// register bit is active low: 0 connects, 1 disconnects.
	TestPulse    [NumChannels]bool
	TestPulseDAC int

	TestMode       int
	CrossTrigger   bool
	PeriodicReset  bool
	FIFODiagnostic bool

	SampleCycles    int
	TestBurstLength int // 16 bits
	ADCBurstLength  int

	// ChannelMask disables a channel when set.
	ChannelMask         [NumChannels]bool
	ExternalTriggerMask [NumChannels]bool

	ResetCycles int // 24 bits
}

// NewChipConfig returns the chip power-on configuration.
func NewChipConfig() *ChipConfig {
	c := &ChipConfig{
		GlobalThreshold: 0x10,
		CSAGain:         true,
		InternalBypass:  true,
		TestMode:        TestOff,
		SampleCycles:    1,
		TestBurstLength: 0x00FF,
		ResetCycles:     0x001000,
	}
	for i := range c.PixelTrims {
		c.PixelTrims[i] = 0x10
		c.CSAMonitorSelect[i] = true
		c.ExternalTriggerMask[i] = true
	}
	return c
}

// EnableChannels clears the mask bit of the given channels, or all channels when none are given.
func (c *ChipConfig) EnableChannels(channels ...int) {
	c.setMask(false, channels)
}

// DisableChannels sets the mask bit of the given channels, or all channels when none are given.
func (c *ChipConfig) DisableChannels(channels ...int) {
	c.setMask(true, channels)
}

func (c *ChipConfig) setMask(masked bool, channels []int) {
	if len(channels) == 0 {
		for i := range c.ChannelMask {
			c.ChannelMask[i] = masked
		}
		return
	}
	for _, ch := range channels {
		c.ChannelMask[ch] = masked
	}
}

// ActiveChannels returns the channels whose mask bit is clear.
func (c *ChipConfig) ActiveChannels() []int {
	var active []int
	for ch, masked := range c.ChannelMask {
		if !masked {
			active = append(active, ch)
		}
	}
	return active
}

// Validate reports the first field that does not fit its register width.
func (c *ChipConfig) Validate() error {
	for ch, trim := range c.PixelTrims {
		if err := checkRange(fmt.Sprintf("pixel_trim[%d]", ch), trim, MaxRegisterValue); err != nil {
			return err
		}
	}
	fields := []struct {
		name  string
		value int
		limit int
	}{
		{"global_threshold", c.GlobalThreshold, MaxRegisterValue},
		{"test_pulse_dac", c.TestPulseDAC, MaxRegisterValue},
		{"test_mode", c.TestMode, 0x3},
		{"sample_cycles", c.SampleCycles, MaxRegisterValue},
		{"test_burst_length", c.TestBurstLength, 0xFFFF},
		{"adc_burst_length", c.ADCBurstLength, MaxRegisterValue},
		{"reset_cycles", c.ResetCycles, 0xFFFFFF},
	}
	for _, f := range fields {
		if err := checkRange(f.name, f.value, f.limit); err != nil {
			return err
		}
	}
	return nil
}

func checkRange(name string, v, limit int) error {
	if v < 0 || v > limit {
		return fmt.Errorf("%w: %s = %d, want [0, %d]", ErrOutOfRange, name, v, limit)
	}
	return nil
}

// RegisterData encodes the whole configuration into register values. Fields
// are truncated to their register width; call Validate first.
func (c *ChipConfig) RegisterData() [NumRegisters]byte {
	var r [NumRegisters]byte
	for ch := 0; ch < NumChannels; ch++ {
		r[ch] = byte(c.PixelTrims[ch])
	}
	r[RegGlobalThreshold] = byte(c.GlobalThreshold)
	r[RegCSAGainBypass] = bit(c.InternalBypass)<<3 | bit(c.CSABypass)<<1 | bit(c.CSAGain)
	for chunk := 0; chunk < 4; chunk++ {
		r[RegCSABypassSelect+chunk] = packBits(c.CSABypassSelect[:], chunk, false)
		r[RegCSAMonitorSelect+chunk] = packBits(c.CSAMonitorSelect[:], chunk, false)
		r[RegTestPulseEnable+chunk] = packBits(c.TestPulse[:], chunk, true)
		r[RegChannelMask+chunk] = packBits(c.ChannelMask[:], chunk, false)
		r[RegExternalTriggerMask+chunk] = packBits(c.ExternalTriggerMask[:], chunk, false)
	}
	r[RegTestPulseDAC] = byte(c.TestPulseDAC)
	r[RegTestMode] = bit(c.FIFODiagnostic)<<4 | bit(c.PeriodicReset)<<3 | bit(c.CrossTrigger)<<2 | byte(c.TestMode&0x3)
	r[RegSampleCycles] = byte(c.SampleCycles)
	r[RegTestBurstLength] = byte(c.TestBurstLength)
	r[RegTestBurstLength+1] = byte(c.TestBurstLength >> 8)
	r[RegADCBurstLength] = byte(c.ADCBurstLength)
	r[RegResetCycles] = byte(c.ResetCycles)
	r[RegResetCycles+1] = byte(c.ResetCycles >> 8)
	r[RegResetCycles+2] = byte(c.ResetCycles >> 16)
	return r
}

// SetRegister decodes one register value into the configuration.
func (c *ChipConfig) SetRegister(addr int, data byte) error {
	switch {
	case addr >= 0 && addr < NumChannels:
		c.PixelTrims[addr] = int(data)
	case addr == RegGlobalThreshold:
		c.GlobalThreshold = int(data)
	case addr == RegCSAGainBypass:
		c.InternalBypass = data&(1<<3) != 0
		c.CSABypass = data&(1<<1) != 0
		c.CSAGain = data&1 != 0
	case addr >= RegCSABypassSelect && addr < RegCSABypassSelect+4:
		unpackBits(c.CSABypassSelect[:], addr-RegCSABypassSelect, data, false)
	case addr >= RegCSAMonitorSelect && addr < RegCSAMonitorSelect+4:
		unpackBits(c.CSAMonitorSelect[:], addr-RegCSAMonitorSelect, data, false)
	case addr >= RegTestPulseEnable && addr < RegTestPulseEnable+4:
		unpackBits(c.TestPulse[:], addr-RegTestPulseEnable, data, true)
	case addr == RegTestPulseDAC:
		c.TestPulseDAC = int(data)
	case addr == RegTestMode:
		c.FIFODiagnostic = data&(1<<4) != 0
		c.PeriodicReset = data&(1<<3) != 0
		c.CrossTrigger = data&(1<<2) != 0
		c.TestMode = int(data & 0x3)
	case addr == RegSampleCycles:
		c.SampleCycles = int(data)
	case addr == RegTestBurstLength:
		c.TestBurstLength = c.TestBurstLength&^0xFF | int(data)
	case addr == RegTestBurstLength+1:
		c.TestBurstLength = c.TestBurstLength&0xFF | int(data)<<8
	case addr == RegADCBurstLength:
		c.ADCBurstLength = int(data)
	case addr >= RegChannelMask && addr < RegChannelMask+4:
		unpackBits(c.ChannelMask[:], addr-RegChannelMask, data, false)
	case addr >= RegExternalTriggerMask && addr < RegExternalTriggerMask+4:
		unpackBits(c.ExternalTriggerMask[:], addr-RegExternalTriggerMask, data, false)
	case addr >= RegResetCycles && addr < RegResetCycles+3:
		shift := uint(addr-RegResetCycles) * 8
		c.ResetCycles = c.ResetCycles&^(0xFF<<shift) | int(data)<<shift
	default:
		return fmt.Errorf("invalid register address: %d", addr)
	}
	return nil
}

func bit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// packBits packs channels [8*chunk, 8*chunk+8) into one byte, channel 8*chunk in bit 0.
func packBits(flags []bool, chunk int, activeLow bool) byte {
	var b byte
	for i := 0; i < 8; i++ {
		if flags[chunk*8+i] != activeLow {
			b |= 1 << uint(i)
		}
	}
	return b
}

func unpackBits(flags []bool, chunk int, data byte, activeLow bool) {
	for i := 0; i < 8; i++ {
		flags[chunk*8+i] = (data&(1<<uint(i)) != 0) != activeLow
	}
}
