package larpix

import (
	"errors"
	"time"
)

var (
	// ErrNotConnected is returned when the controller is used before Connect.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrOutOfRange is returned when a configuration field does not fit its register.
	ErrOutOfRange = errors.New("value out of register range")
)

// Read is the set of packets collected during one run, in arrival order.
type Read struct {
	Label   string
	Packets []Packet
}

// Controller defines the interface for LArPix controllers (real or mocked).
type Controller interface {
	Connect() error
	Close() error
	IsConnected() bool

	// WriteConfiguration writes the registers named by d from chip.Config.
	WriteConfiguration(chip *Chip, d Delta) error
	// WriteReadConfiguration writes like WriteConfiguration, then collects
	// packets for listen and appends them to the read history.
	WriteReadConfiguration(chip *Chip, d Delta, listen time.Duration) error
	// ReadConfiguration asks the chip for its register values.
	ReadConfiguration(chip *Chip) (map[int]byte, error)

	// Run collects packets from chip for d and appends them to the read history.
	Run(chip *Chip, d time.Duration, label string) (Read, error)
	// Reads returns the read history.
	Reads() []Read
	// ClearReads drops the read history.
	ClearReads()
}

// Ensure Serial implements Controller.
var _ Controller = (*Serial)(nil)

// Ensure Mock implements Controller.
var _ Controller = (*Mock)(nil)

// readsFor keeps the frames that come from chip. A nil chip keeps everything.
func readsFor(chip *Chip, frames []Frame) []Packet {
	packets := make([]Packet, 0, len(frames))
	for _, f := range frames {
		if chip != nil && (f.IOChain != chip.IOChain || f.Packet.ChipID() != chip.ID) {
			continue
		}
		packets = append(packets, f.Packet)
	}
	return packets
}

func copyReads(reads []Read) []Read {
	out := make([]Read, len(reads))
	for i, r := range reads {
		out[i] = Read{Label: r.Label, Packets: append([]Packet(nil), r.Packets...)}
	}
	return out
}
