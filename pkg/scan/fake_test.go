package scan

import (
	"errors"
	"fmt"
	"time"

	"github.com/itohio/golarpix/pkg/larpix"
)

var errLinkDown = errors.New("link down")

// call records one controller interaction together with the chip state at
// the time it was made.
type call struct {
	op        string
	fields    larpix.Field
	trims     []int
	label     string
	threshold int
	trim      int // trim of the traced channel
	pulse     bool
	d         time.Duration
}

func (c call) String() string {
	switch c.op {
	case "write", "write-read":
		return fmt.Sprintf("%s %v", c.op, larpix.Delta{Fields: c.fields, Trims: c.trims})
	case "run":
		return "run " + c.label
	}
	return c.op
}

// fakeController is a scripted larpix.Controller.
type fakeController struct {
	channel int // channel whose trim and test pulse are traced
	calls   []call
	reads   []larpix.Read
	regs    map[int]byte

	// packets returns the packets of a run. Nil means no packets.
	packets func(chip *larpix.Chip, label string) []larpix.Packet
	// fail is consulted before every interaction; a non-nil error is returned.
	fail func(c call) error
	// readBack alters register values returned by ReadConfiguration.
	readBack func(regs map[int]byte)
}

func newFakeController() *fakeController {
	return &fakeController{regs: make(map[int]byte)}
}

func (f *fakeController) record(chip *larpix.Chip, c call) error {
	if chip != nil {
		c.threshold = chip.Config.GlobalThreshold
		c.trim = chip.Config.PixelTrims[f.channel]
		c.pulse = chip.Config.TestPulse[f.channel]
	}
	f.calls = append(f.calls, c)
	if f.fail != nil {
		return f.fail(c)
	}
	return nil
}

func (f *fakeController) Connect() error    { return nil }
func (f *fakeController) Close() error      { return nil }
func (f *fakeController) IsConnected() bool { return true }

func (f *fakeController) store(chip *larpix.Chip, d larpix.Delta) {
	data := chip.Config.RegisterData()
	for _, addr := range d.Registers() {
		f.regs[addr] = data[addr]
	}
}

func (f *fakeController) WriteConfiguration(chip *larpix.Chip, d larpix.Delta) error {
	if err := f.record(chip, call{op: "write", fields: d.Fields, trims: d.Trims}); err != nil {
		return err
	}
	f.store(chip, d)
	return nil
}

func (f *fakeController) WriteReadConfiguration(chip *larpix.Chip, d larpix.Delta, listen time.Duration) error {
	if err := f.record(chip, call{op: "write-read", fields: d.Fields, trims: d.Trims, d: listen}); err != nil {
		return err
	}
	f.store(chip, d)
	f.reads = append(f.reads, larpix.Read{Label: "configuration write", Packets: f.run(chip, "configuration write")})
	return nil
}

func (f *fakeController) ReadConfiguration(chip *larpix.Chip) (map[int]byte, error) {
	if err := f.record(chip, call{op: "read-config"}); err != nil {
		return nil, err
	}
	out := make(map[int]byte, len(f.regs))
	for k, v := range f.regs {
		out[k] = v
	}
	if f.readBack != nil {
		f.readBack(out)
	}
	return out, nil
}

func (f *fakeController) Run(chip *larpix.Chip, d time.Duration, label string) (larpix.Read, error) {
	if err := f.record(chip, call{op: "run", label: label, d: d}); err != nil {
		return larpix.Read{}, err
	}
	read := larpix.Read{Label: label, Packets: f.run(chip, label)}
	f.reads = append(f.reads, read)
	return read, nil
}

func (f *fakeController) run(chip *larpix.Chip, label string) []larpix.Packet {
	if f.packets == nil {
		return nil
	}
	return f.packets(chip, label)
}

func (f *fakeController) Reads() []larpix.Read {
	return append([]larpix.Read(nil), f.reads...)
}

func (f *fakeController) ClearReads() {
	f.calls = append(f.calls, call{op: "clear"})
	f.reads = nil
}

// ops returns the string form of every recorded call.
func (f *fakeController) ops() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

// callsOf returns the recorded calls with the given op.
func (f *fakeController) callsOf(op string) []call {
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

// packetsWithDatawords builds data packets for chip channel 0.
func packetsWithDatawords(chipID int, datawords ...int) []larpix.Packet {
	packets := make([]larpix.Packet, len(datawords))
	for i, d := range datawords {
		packets[i] = larpix.NewDataPacket(chipID, 0, i, d)
	}
	return packets
}

// noise returns n packets with datawords cycling around pedestal.
func noise(chipID, n, pedestal int) []larpix.Packet {
	datawords := make([]int, n)
	for i := range datawords {
		datawords[i] = pedestal + i%5 - 2
	}
	return packetsWithDatawords(chipID, datawords...)
}

var _ larpix.Controller = (*fakeController)(nil)
