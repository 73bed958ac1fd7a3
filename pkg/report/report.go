// Package report records a calibration session and writes it as JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/itohio/golarpix/pkg/larpix"
	"github.com/itohio/golarpix/pkg/scan"
	"github.com/itohio/golarpix/pkg/timeutil"
	"gopkg.in/yaml.v3"
)

// Format selects the encoding of a session file.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatFor picks the format from a file extension. Unknown extensions use JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// ChipRef identifies the chip a session scanned.
type ChipRef struct {
	ID      int `json:"id" yaml:"id"`
	IOChain int `json:"io_chain" yaml:"io_chain"`
}

// PulseRead is one read collected while pulsing.
type PulseRead struct {
	Label     string `json:"label" yaml:"label"`
	Channels  []int  `json:"channels" yaml:"channels"`
	Datawords []int  `json:"datawords" yaml:"datawords"`
}

// Session is the record of one calibration run.
type Session struct {
	ID       string       `json:"id" yaml:"id"`
	Board    string       `json:"board" yaml:"board"`
	Chip     ChipRef      `json:"chip" yaml:"chip"`
	Mode     string       `json:"mode" yaml:"mode"`
	Started  time.Time    `json:"started" yaml:"started"`
	Finished time.Time    `json:"finished" yaml:"finished"`
	Coarse   scan.Results `json:"coarse,omitempty" yaml:"coarse,omitempty"`
	Trim     scan.Results `json:"trim,omitempty" yaml:"trim,omitempty"`
	Pulses   []PulseRead  `json:"pulses,omitempty" yaml:"pulses,omitempty"`
	// Skipped maps channels left out of the trim scan to the reason.
	Skipped map[int]string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// NewSession starts a session for chip on board. A nil clock uses the real clock.
func NewSession(board string, chip *larpix.Chip, mode string, clock timeutil.Clock) *Session {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Session{
		ID:      uuid.New().String(),
		Board:   board,
		Chip:    ChipRef{ID: chip.ID, IOChain: chip.IOChain},
		Mode:    mode,
		Started: clock.Now().UTC(),
	}
}

// Finish stamps the end of the session.
func (s *Session) Finish(clock timeutil.Clock) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s.Finished = clock.Now().UTC()
}

// Skip records that channel was left out of the trim scan because of err.
func (s *Session) Skip(channel int, err error) {
	if s.Skipped == nil {
		s.Skipped = make(map[int]string)
	}
	s.Skipped[channel] = err.Error()
}

// AddPulses records the reads collected by a pulse run.
func (s *Session) AddPulses(reads []larpix.Read) {
	for _, r := range reads {
		pr := PulseRead{
			Label:     r.Label,
			Channels:  make([]int, 0, len(r.Packets)),
			Datawords: make([]int, 0, len(r.Packets)),
		}
		for _, p := range r.Packets {
			if p.Type() != larpix.DataPacket {
				continue
			}
			pr.Channels = append(pr.Channels, p.Channel())
			pr.Datawords = append(pr.Datawords, p.Dataword())
		}
		s.Pulses = append(s.Pulses, pr)
	}
}

// Encode writes the session to w.
func (s *Session) Encode(w io.Writer, f Format) error {
	switch f {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		return enc.Close()
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown format %q", f)
}

// Decode reads a session from r.
func Decode(r io.Reader, f Format) (*Session, error) {
	s := &Session{}
	var err error
	switch f {
	case YAML:
		err = yaml.NewDecoder(r).Decode(s)
	case JSON:
		err = json.NewDecoder(r).Decode(s)
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	s.Coarse.SetChannels()
	s.Trim.SetChannels()
	return s, nil
}

// Save writes the session to path in the format matching its extension.
func (s *Session) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := s.Encode(f, FormatFor(path)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// Load reads a session from path.
func Load(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report file: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatFor(path))
}
