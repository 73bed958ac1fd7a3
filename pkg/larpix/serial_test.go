package larpix

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort is an in-memory serial.Port. Read hands out queued chunks one per call.
type fakePort struct {
	serial.Port

	mu      sync.Mutex
	written bytes.Buffer
	chunks  [][]byte
	closed  bool
	timeout time.Duration
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) == 0 {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(b, p.chunks[0])
	p.chunks = p.chunks[1:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) queue(chunks ...[]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = append(p.chunks, chunks...)
}

func newFakeSerial(t *testing.T) (*Serial, *fakePort) {
	t.Helper()
	port := &fakePort{}
	s := New("/dev/fake", 0)
	s.open = func(name string, mode *serial.Mode) (serial.Port, error) {
		assert.Equal(t, "/dev/fake", name)
		assert.Equal(t, DefaultBaudRate, mode.BaudRate)
		return port, nil
	}
	require.NoError(t, s.Connect())
	return s, port
}

func TestSerial_Connect(t *testing.T) {
	s, port := newFakeSerial(t)

	assert.True(t, s.IsConnected())
	assert.Equal(t, DefaultReadTimeout, port.timeout)
	assert.ErrorIs(t, s.Connect(), ErrAlreadyConnected)

	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
	assert.True(t, port.closed)
	assert.NoError(t, s.Close())
}

func TestSerial_NotConnected(t *testing.T) {
	s := New("/dev/fake", 0)
	chip := NewChip(1, 0)

	assert.ErrorIs(t, s.WriteConfiguration(chip, Fields(FieldGlobalThreshold)), ErrNotConnected)
	assert.ErrorIs(t, s.WriteReadConfiguration(chip, Fields(FieldGlobalThreshold), time.Millisecond), ErrNotConnected)
	_, err := s.ReadConfiguration(chip)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.Run(chip, time.Millisecond, "x")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSerial_WriteConfiguration(t *testing.T) {
	s, port := newFakeSerial(t)
	chip := NewChip(246, 0)
	chip.Config.GlobalThreshold = 40

	require.NoError(t, s.WriteConfiguration(chip, Fields(FieldGlobalThreshold|FieldChannelMask)))

	var want []byte
	for _, f := range ConfigurationFrames(chip, ConfigWritePacket, Fields(FieldGlobalThreshold|FieldChannelMask)) {
		want = append(want, f...)
	}
	assert.Equal(t, want, port.written.Bytes())
	assert.Len(t, port.written.Bytes(), 5*FrameSize)
}

func TestSerial_WriteOutOfRange(t *testing.T) {
	s, port := newFakeSerial(t)
	chip := NewChip(246, 0)
	chip.Config.TestPulseDAC = 900

	assert.ErrorIs(t, s.WriteConfiguration(chip, Fields(FieldTestPulseDAC)), ErrOutOfRange)
	assert.ErrorIs(t, s.WriteReadConfiguration(chip, Fields(FieldTestPulseDAC), time.Millisecond), ErrOutOfRange)
	assert.Empty(t, port.written.Bytes())
}

func TestSerial_Run(t *testing.T) {
	s, port := newFakeSerial(t)
	chip := NewChip(12, 0)

	mine1 := NewDataPacket(12, 5, 1, 300)
	mine2 := NewDataPacket(12, 5, 2, 310)
	other := NewDataPacket(13, 5, 3, 320)
	otherChain := NewDataPacket(12, 5, 4, 330)

	second := FormatUART(0, mine2)
	port.queue(
		append(FormatUART(0, mine1), second[:6]...),
		append(second[6:], FormatUART(0, other)...),
		FormatUART(1, otherChain),
	)

	read, err := s.Run(chip, 30*time.Millisecond, "scan threshold")
	require.NoError(t, err)
	assert.Equal(t, "scan threshold", read.Label)
	assert.Equal(t, []Packet{mine1, mine2}, read.Packets)

	reads := s.Reads()
	require.Len(t, reads, 1)
	assert.Equal(t, read, reads[0])

	s.ClearReads()
	assert.Empty(t, s.Reads())
}

func TestSerial_WriteReadConfiguration(t *testing.T) {
	s, port := newFakeSerial(t)
	chip := NewChip(12, 0)

	pulse := NewDataPacket(12, 0, 1, 500)
	port.queue(FormatUART(0, pulse))

	require.NoError(t, s.WriteReadConfiguration(chip, Fields(FieldTestPulseEnable), 20*time.Millisecond))

	reads := s.Reads()
	require.Len(t, reads, 1)
	assert.Equal(t, "configuration write", reads[0].Label)
	assert.Equal(t, []Packet{pulse}, reads[0].Packets)
	assert.Len(t, port.written.Bytes(), 4*FrameSize)
}

func TestSerial_ReadConfiguration(t *testing.T) {
	s, port := newFakeSerial(t)
	chip := NewChip(12, 0)

	threshold := NewConfigPacket(ConfigReadPacket, 12, RegGlobalThreshold, 55)
	trim := NewConfigPacket(ConfigReadPacket, 12, 3, 9)
	corrupt := NewConfigPacket(ConfigReadPacket, 12, RegTestPulseDAC, 7) ^ 1<<20
	port.queue(FormatUART(0, threshold), FormatUART(0, trim), FormatUART(0, corrupt))

	regs, err := s.ReadConfiguration(chip)
	require.NoError(t, err)
	assert.Equal(t, map[int]byte{RegGlobalThreshold: 55, 3: 9}, regs)
	assert.Len(t, port.written.Bytes(), NumRegisters*FrameSize)
}
