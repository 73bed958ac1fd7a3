package larpix

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the LArPix FTDI link rate.
	DefaultBaudRate = 1000000
	// DefaultReadTimeout bounds one blocking read from the port.
	DefaultReadTimeout = 50 * time.Millisecond
	// DefaultConfigReadWindow is how long ReadConfiguration waits for replies.
	DefaultConfigReadWindow = 100 * time.Millisecond
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Serial is a controller talking to a board over a serial port.
type Serial struct {
	port     string
	baudRate int
	maxWrite int

	open func(name string, mode *serial.Mode) (serial.Port, error)

	mu        sync.Mutex
	conn      serial.Port
	connected bool
	pending   []byte // unparsed tail carried between reads
	reads     []Read
}

// New creates a new Serial controller with the specified port and baud rate.
func New(port string, baudRate int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		maxWrite: DefaultMaxWrite,
		open:     serial.Open,
	}
}

// Connect opens the serial port, retrying with exponential backoff while the
// adapter enumerates.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return ErrAlreadyConnected
	}

	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	var conn serial.Port
	op := func() error {
		p, err := s.open(s.port, mode)
		if err != nil {
			return err
		}
		conn = p
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	if err := conn.SetReadTimeout(DefaultReadTimeout); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", s.port, err)
	}

	s.conn = conn
	s.connected = true
	s.pending = nil

	return nil
}

// Close closes the serial port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		s.conn = nil
	}

	s.connected = false

	return nil
}

// IsConnected returns whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// WriteConfiguration writes the registers named by d, one config packet per register.
func (s *Serial) WriteConfiguration(chip *Chip, d Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}
	if err := chip.Config.Validate(); err != nil {
		return err
	}
	return s.write(ConfigurationFrames(chip, ConfigWritePacket, d))
}

// WriteReadConfiguration writes the registers named by d and then records
// whatever the board sends during listen.
func (s *Serial) WriteReadConfiguration(chip *Chip, d Delta, listen time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return ErrNotConnected
	}
	if err := chip.Config.Validate(); err != nil {
		return err
	}
	if err := s.write(ConfigurationFrames(chip, ConfigWritePacket, d)); err != nil {
		return err
	}
	frames, err := s.collect(listen)
	if err != nil {
		return err
	}
	s.reads = append(s.reads, Read{Label: "configuration write", Packets: readsFor(nil, frames)})
	return nil
}

// ReadConfiguration requests every register and returns the values the chip reports.
func (s *Serial) ReadConfiguration(chip *Chip) (map[int]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, ErrNotConnected
	}
	if err := s.write(ConfigurationFrames(chip, ConfigReadPacket, FullDelta())); err != nil {
		return nil, err
	}
	frames, err := s.collect(DefaultConfigReadWindow)
	if err != nil {
		return nil, err
	}

	regs := make(map[int]byte)
	for _, p := range readsFor(chip, frames) {
		if p.Type() != ConfigReadPacket {
			continue
		}
		if !p.HasValidParity() {
			log.Printf("Dropping config read with bad parity: %v", p)
			continue
		}
		regs[p.RegisterAddress()] = p.RegisterData()
	}
	return regs, nil
}

// Run collects packets from chip for d.
func (s *Serial) Run(chip *Chip, d time.Duration, label string) (Read, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return Read{}, ErrNotConnected
	}
	frames, err := s.collect(d)
	if err != nil {
		return Read{}, err
	}
	read := Read{Label: label, Packets: readsFor(chip, frames)}
	s.reads = append(s.reads, read)
	return read, nil
}

// Reads returns a copy of the read history.
func (s *Serial) Reads() []Read {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyReads(s.reads)
}

// ClearReads drops the read history.
func (s *Serial) ClearReads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = nil
}

func (s *Serial) write(frames [][]byte) error {
	for _, stream := range FormatBytestream(frames, s.maxWrite) {
		if _, err := s.conn.Write(stream); err != nil {
			return fmt.Errorf("failed to write to serial port: %w", err)
		}
	}
	return nil
}

// collect reads from the port until d has elapsed and parses the frames received.
func (s *Serial) collect(d time.Duration) ([]Frame, error) {
	buf := make([]byte, s.maxWrite)
	stream := s.pending
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		n, err := s.conn.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to read from serial port: %w", err)
		}
		if n == 0 {
			continue
		}
		stream = append(stream, buf[:n]...)
	}
	frames, rest := ParseUART(stream)
	s.pending = rest
	return frames, nil
}
