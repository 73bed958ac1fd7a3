package larpix

import (
	"fmt"
	"sync"
	"time"

	"github.com/itohio/golarpix/pkg/config"
	"github.com/itohio/golarpix/pkg/timeutil"
)

const (
	// datawordMax is the largest 10-bit ADC sample.
	datawordMax = 1<<datawordWidth - 1
	// defaultTrim is the trim value the simulated onset is centred on.
	defaultTrim = 0x10
)

type chipKey struct {
	id, ioChain int
}

// Mock simulates a board of LArPix chips for testing and development.
// It keeps a shadow copy of every register it was sent, so a chip only
// behaves according to what was actually written.
type Mock struct {
	cfg   *config.MockConfig
	clock timeutil.Clock

	mu        sync.Mutex
	connected bool
	regs      map[chipKey]*[NumRegisters]byte
	pending   map[chipKey][]Packet // packets produced by pulses, delivered on the next collection
	reads     []Read
	timestamp int
}

// NewMock creates a new simulated controller. A nil clock uses the real clock.
func NewMock(cfg *config.MockConfig, clock timeutil.Clock) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	return &Mock{
		cfg:     cfg,
		clock:   clock,
		regs:    make(map[chipKey]*[NumRegisters]byte),
		pending: make(map[chipKey][]Packet),
	}
}

// Connect simulates connecting to the board.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}
	m.connected = true
	return nil
}

// Close simulates disconnecting.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected returns whether the mock is connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// WriteConfiguration copies the registers named by d into the shadow registers.
func (m *Mock) WriteConfiguration(chip *Chip, d Delta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	return m.write(chip, d)
}

// WriteReadConfiguration writes and then records the packets produced during listen.
func (m *Mock) WriteReadConfiguration(chip *Chip, d Delta, listen time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if err := m.write(chip, d); err != nil {
		return err
	}
	m.reads = append(m.reads, Read{Label: "configuration write", Packets: m.collect(chip, listen)})
	return nil
}

// ReadConfiguration returns the shadow registers of chip.
func (m *Mock) ReadConfiguration(chip *Chip) (map[int]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, ErrNotConnected
	}
	regs := m.registers(chip)
	out := make(map[int]byte, NumRegisters)
	for addr, v := range regs {
		out[addr] = v
	}
	return out, nil
}

// Run simulates collecting packets from chip for d.
func (m *Mock) Run(chip *Chip, d time.Duration, label string) (Read, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return Read{}, ErrNotConnected
	}
	read := Read{Label: label, Packets: m.collect(chip, d)}
	m.reads = append(m.reads, read)
	return read, nil
}

// Reads returns a copy of the read history.
func (m *Mock) Reads() []Read {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyReads(m.reads)
}

// ClearReads drops the read history.
func (m *Mock) ClearReads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = nil
}

// State decodes the shadow registers of chip into a configuration.
func (m *Mock) State(chip *Chip) (*ChipConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state(chip)
}

func (m *Mock) registers(chip *Chip) *[NumRegisters]byte {
	key := chipKey{chip.ID, chip.IOChain}
	regs, ok := m.regs[key]
	if !ok {
		def := NewChipConfig().RegisterData()
		regs = &def
		m.regs[key] = regs
	}
	return regs
}

func (m *Mock) state(chip *Chip) (*ChipConfig, error) {
	regs := m.registers(chip)
	c := NewChipConfig()
	for addr, v := range regs {
		if err := c.SetRegister(addr, v); err != nil {
			return nil, fmt.Errorf("failed to decode register %d: %w", addr, err)
		}
	}
	return c, nil
}

func (m *Mock) write(chip *Chip, d Delta) error {
	if err := chip.Config.Validate(); err != nil {
		return err
	}
	before, err := m.state(chip)
	if err != nil {
		return err
	}
	regs := m.registers(chip)
	data := chip.Config.RegisterData()
	for _, addr := range d.Registers() {
		regs[addr] = data[addr]
	}
	after, err := m.state(chip)
	if err != nil {
		return err
	}

	// A pulse is injected on the falling edge of the test-pulse connection.
	if d.Has(FieldTestPulseEnable) && after.TestPulseDAC > 0 {
		for ch := 0; ch < NumChannels; ch++ {
			if before.TestPulse[ch] && !after.TestPulse[ch] {
				m.pulse(chip, after, ch)
			}
		}
	}
	return nil
}

func (m *Mock) pulse(chip *Chip, state *ChipConfig, channel int) {
	key := chipKey{chip.ID, chip.IOChain}
	amplitude := m.cfg.Pedestal + state.TestPulseDAC
	if amplitude > datawordMax {
		amplitude = datawordMax
	}
	m.timestamp++
	m.pending[key] = append(m.pending[key], NewDataPacket(chip.ID, channel, m.timestamp, amplitude))
	if !state.CrossTrigger {
		return
	}
	for ch := 0; ch < NumChannels; ch++ {
		if ch == channel || state.ChannelMask[ch] {
			continue
		}
		m.pending[key] = append(m.pending[key], NewDataPacket(chip.ID, ch, m.timestamp, m.noiseSample(ch, m.timestamp)))
	}
}

// collect returns pulse packets waiting for chip followed by noise packets
// for d. The clock is advanced by d.
func (m *Mock) collect(chip *Chip, d time.Duration) []Packet {
	key := chipKey{chip.ID, chip.IOChain}
	packets := m.pending[key]
	delete(m.pending, key)

	state, err := m.state(chip)
	if err == nil {
		for ch := 0; ch < NumChannels; ch++ {
			if state.ChannelMask[ch] {
				continue
			}
			n := int(m.noiseRate(state, ch) * d.Seconds())
			for i := 0; i < n; i++ {
				m.timestamp++
				packets = append(packets, NewDataPacket(chip.ID, ch, m.timestamp, m.noiseSample(ch, i)))
			}
		}
	}
	m.clock.Sleep(d)
	return packets
}

// noiseRate is the packet rate of a channel in packets per second. A channel
// is quiet while its effective threshold is at or above its onset level.
func (m *Mock) noiseRate(state *ChipConfig, ch int) float64 {
	gain := m.cfg.TrimGain
	if gain <= 0 {
		gain = 1
	}
	onset := (m.cfg.Onset+(ch%4)*m.cfg.OnsetSpread)*gain + defaultTrim
	level := state.GlobalThreshold*gain + state.PixelTrims[ch]
	deficit := float64(onset - level)
	if deficit <= 0 {
		return 0
	}
	rate := m.cfg.Rate * deficit * deficit
	if m.cfg.MaxRate > 0 && rate > m.cfg.MaxRate {
		rate = m.cfg.MaxRate
	}
	return rate
}

// noiseSample returns a deterministic dataword spread around the pedestal.
func (m *Mock) noiseSample(ch, i int) int {
	v := m.cfg.Pedestal + ch
	if m.cfg.Spread > 0 {
		v += (i*7+ch)%(2*m.cfg.Spread+1) - m.cfg.Spread
	}
	if v < 0 {
		v = 0
	}
	if v > datawordMax {
		v = datawordMax
	}
	return v
}
