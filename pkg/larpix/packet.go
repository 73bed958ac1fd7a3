package larpix

import (
	"fmt"
	"math/bits"
)

// PacketType is the two-bit packet type field.
type PacketType uint8

const (
	TestPacket        PacketType = 0x0
	DataPacket        PacketType = 0x1
	ConfigWritePacket PacketType = 0x2
	ConfigReadPacket  PacketType = 0x3
)

func (t PacketType) String() string {
	switch t {
	case TestPacket:
		return "test"
	case DataPacket:
		return "data"
	case ConfigWritePacket:
		return "config write"
	case ConfigReadPacket:
		return "config read"
	}
	return fmt.Sprintf("PacketType(%d)", uint8(t))
}

const (
	// PacketBits is the width of one packet.
	PacketBits = 54
	// PacketBytes is the size of one packet on the wire.
	PacketBytes = 7
)

// Bit layout, bit 0 first on the wire.
const (
	typeLo, typeWidth           = 0, 2
	chipIDLo, chipIDWidth       = 2, 8
	channelLo, channelWidth     = 10, 7
	timestampLo, timestampWidth = 17, 24
	datawordLo, datawordWidth   = 41, 10
	fifoHalfBit                 = 51
	fifoFullBit                 = 52
	parityBit                   = 53
	regAddrLo, regAddrWidth     = 10, 8
	regDataLo, regDataWidth     = 18, 8
)

// Packet is one 54-bit LArPix UART packet.
type Packet uint64

// NewDataPacket builds a data packet with valid parity.
func NewDataPacket(chipID, channel, timestamp, dataword int) Packet {
	var p Packet
	p.set(typeLo, typeWidth, uint64(DataPacket))
	p.set(chipIDLo, chipIDWidth, uint64(chipID))
	p.set(channelLo, channelWidth, uint64(channel))
	p.set(timestampLo, timestampWidth, uint64(timestamp))
	p.set(datawordLo, datawordWidth, uint64(dataword))
	p.AssignParity()
	return p
}

// NewConfigPacket builds a configuration read or write packet with valid parity.
func NewConfigPacket(t PacketType, chipID, addr int, data byte) Packet {
	var p Packet
	p.set(typeLo, typeWidth, uint64(t))
	p.set(chipIDLo, chipIDWidth, uint64(chipID))
	p.set(regAddrLo, regAddrWidth, uint64(addr))
	p.set(regDataLo, regDataWidth, uint64(data))
	p.AssignParity()
	return p
}

// PacketFromBytes decodes a packet from its 7-byte little-endian wire form.
func PacketFromBytes(b []byte) (Packet, error) {
	if len(b) != PacketBytes {
		return 0, fmt.Errorf("invalid number of bytes: %d", len(b))
	}
	var v uint64
	for i := PacketBytes - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return Packet(v & (1<<PacketBits - 1)), nil
}

// Bytes encodes the packet into its 7-byte little-endian wire form.
func (p Packet) Bytes() []byte {
	b := make([]byte, PacketBytes)
	v := uint64(p)
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func (p Packet) get(lo, width uint) uint64 {
	return uint64(p) >> lo & (1<<width - 1)
}

func (p *Packet) set(lo, width uint, v uint64) {
	mask := uint64(1<<width-1) << lo
	*p = Packet(uint64(*p)&^mask | v<<lo&mask)
}

// Type returns the packet type.
func (p Packet) Type() PacketType {
	return PacketType(p.get(typeLo, typeWidth))
}

// ChipID returns the chip identifier the packet came from or is addressed to.
func (p Packet) ChipID() int {
	return int(p.get(chipIDLo, chipIDWidth))
}

// Channel returns the channel of a data packet.
func (p Packet) Channel() int {
	return int(p.get(channelLo, channelWidth))
}

// Timestamp returns the chip clock timestamp of a data packet.
func (p Packet) Timestamp() int {
	return int(p.get(timestampLo, timestampWidth))
}

// Dataword is the ADC sample of a data packet.
func (p Packet) Dataword() int {
	return int(p.get(datawordLo, datawordWidth))
}

func (p Packet) FIFOHalf() bool {
	return p.get(fifoHalfBit, 1) == 1
}

func (p Packet) FIFOFull() bool {
	return p.get(fifoFullBit, 1) == 1
}

// RegisterAddress returns the register address of a configuration packet.
func (p Packet) RegisterAddress() int {
	return int(p.get(regAddrLo, regAddrWidth))
}

// RegisterData returns the register value of a configuration packet.
func (p Packet) RegisterData() byte {
	return byte(p.get(regDataLo, regDataWidth))
}

func (p Packet) ParityBit() int {
	return int(p.get(parityBit, 1))
}

func (p Packet) HasValidParity() bool {
	return p.ParityBit() == p.ComputeParity()
}

// SetFIFOFlags sets the fifo half/full flags and recomputes parity.
func (p *Packet) SetFIFOFlags(half, full bool) {
	p.set(fifoHalfBit, 1, uint64(bit(half)))
	p.set(fifoFullBit, 1, uint64(bit(full)))
	p.AssignParity()
}

// ComputeParity returns the parity bit that makes the packet odd parity.
func (p Packet) ComputeParity() int {
	return 1 - bits.OnesCount64(uint64(p)&(1<<parityBit-1))%2
}

// AssignParity sets the parity bit.
func (p *Packet) AssignParity() {
	p.set(parityBit, 1, uint64(p.ComputeParity()))
}

func (p Packet) String() string {
	switch p.Type() {
	case DataPacket:
		return fmt.Sprintf("Packet(data chip=%d channel=%d timestamp=%d dataword=%d)",
			p.ChipID(), p.Channel(), p.Timestamp(), p.Dataword())
	case ConfigWritePacket, ConfigReadPacket:
		return fmt.Sprintf("Packet(%s chip=%d register=%d data=0x%02x)",
			p.Type(), p.ChipID(), p.RegisterAddress(), p.RegisterData())
	}
	return fmt.Sprintf("Packet(%s 0x%014x)", p.Type(), uint64(p))
}
