package larpix

import "bytes"

const (
	// StartByte opens every UART frame.
	StartByte = 0x73
	// StopByte closes every UART frame.
	StopByte = 0x71
	// FrameSize is start + packet + chain metadata + stop.
	FrameSize = PacketBytes + 3
	// DefaultMaxWrite is the largest bytestream written to the port at once.
	DefaultMaxWrite = 8192
)

// Frame is one packet received from a daisy chain.
type Frame struct {
	IOChain int
	Packet  Packet
}

// FormatUART wraps a packet into a UART frame for the given io chain.
func FormatUART(ioChain int, p Packet) []byte {
	frame := make([]byte, 0, FrameSize)
	frame = append(frame, StartByte)
	frame = append(frame, p.Bytes()...)
	frame = append(frame, byte(ioChain&0x0F))
	frame = append(frame, StopByte)
	return frame
}

// ParseUART extracts complete frames from a byte stream. Bytes between a bad
// frame and the next start byte are dropped. The unparsed tail is returned so
// the caller can prepend it to the next read.
func ParseUART(stream []byte) ([]Frame, []byte) {
	var frames []Frame
	cur := stream
	for len(cur) >= FrameSize {
		if cur[0] == StartByte && cur[FrameSize-1] == StopByte {
			// The slice is always PacketBytes long, the only case PacketFromBytes rejects.
			p, _ := PacketFromBytes(cur[1 : 1+PacketBytes])
			frames = append(frames, Frame{
				IOChain: int(cur[1+PacketBytes] & 0x0F),
				Packet:  p,
			})
			cur = cur[FrameSize:]
			continue
		}
		next := bytes.IndexByte(cur[1:], StartByte)
		if next < 0 {
			cur = nil
			break
		}
		cur = cur[1+next:]
	}
	rest := make([]byte, len(cur))
	copy(rest, cur)
	return frames, rest
}

// FormatBytestream concatenates frames into chunks no longer than maxWrite.
func FormatBytestream(frames [][]byte, maxWrite int) [][]byte {
	if maxWrite <= 0 {
		maxWrite = DefaultMaxWrite
	}
	var streams [][]byte
	var cur []byte
	for _, f := range frames {
		if len(cur)+len(f) >= maxWrite && len(cur) > 0 {
			streams = append(streams, cur)
			cur = nil
		}
		cur = append(cur, f...)
	}
	streams = append(streams, cur)
	return streams
}

// ConfigurationFrames builds the UART frames writing the registers covered by d.
func ConfigurationFrames(chip *Chip, t PacketType, d Delta) [][]byte {
	data := chip.Config.RegisterData()
	regs := d.Registers()
	frames := make([][]byte, 0, len(regs))
	for _, addr := range regs {
		var value byte
		if t == ConfigWritePacket {
			value = data[addr]
		}
		frames = append(frames, FormatUART(chip.IOChain, NewConfigPacket(t, chip.ID, addr, value)))
	}
	return frames
}
