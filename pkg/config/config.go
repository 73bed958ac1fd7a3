package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Board  BoardConfig  `yaml:"board"`
	Scan   ScanConfig   `yaml:"scan"`
	Pulser PulserConfig `yaml:"pulser"`
	Mock   MockConfig   `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// BoardConfig selects the test board and the chip under test.
type BoardConfig struct {
	Name      string      `yaml:"name"`
	ChipIndex int         `yaml:"chip_index"` // Index into Chips of the chip under test
	Chips     []ChipEntry `yaml:"chips"`      // Overrides the preset chip list when set
}

// ChipEntry identifies one chip on the daisy chain.
type ChipEntry struct {
	ID      int `yaml:"id"`
	IOChain int `yaml:"io_chain"`
}

// ScanConfig contains threshold and trim scan parameters.
type ScanConfig struct {
	Channels         []int         `yaml:"channels"`
	CoarseMin        int           `yaml:"coarse_min"`
	CoarseMax        int           `yaml:"coarse_max"` // Exclusive
	CoarseStep       int           `yaml:"coarse_step"`
	TrimMargin       int           `yaml:"trim_margin"`       // Trim values explored past the initial trim, 0 means default
	Window           time.Duration `yaml:"window"`            // Length of one measurement window
	Flush            time.Duration `yaml:"flush"`             // Length of the one-time buffer flush run
	Settle           time.Duration `yaml:"settle"`            // Pause after the flush run
	Verify           bool          `yaml:"verify"`            // Read back the channel mask after writing it
	PhysicsThreshold int           `yaml:"physics_threshold"` // Global threshold applied by the physics preset
}

// PulserConfig contains internal pulser noise test parameters.
type PulserConfig struct {
	Channel   int           `yaml:"channel"`
	Count     int           `yaml:"count"`
	DAC       int           `yaml:"dac"` // Pulse amplitude, 0 means default
	Threshold int           `yaml:"threshold"`
	Listen    time.Duration `yaml:"listen"` // Read window after each pulse edge
}

// MockConfig contains simulated controller configuration.
type MockConfig struct {
	Onset       int     `yaml:"onset"`        // Global threshold at which channel 0 starts to fire
	OnsetSpread int     `yaml:"onset_spread"` // Onset offset added per channel (mod 4)
	TrimGain    int     `yaml:"trim_gain"`    // Trim counts per global threshold count
	Rate        float64 `yaml:"rate"`         // Packets per second per threshold count below onset
	MaxRate     float64 `yaml:"max_rate"`     // Saturation rate in packets per second
	Pedestal    int     `yaml:"pedestal"`     // Mean noise dataword
	Spread      int     `yaml:"spread"`       // Dataword spread around the pedestal
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB2",
			BaudRate: 1000000,
		},
		Board: BoardConfig{
			Name:      "pcb-5",
			ChipIndex: 0,
		},
		Scan: ScanConfig{
			Channels:         []int{0},
			CoarseMin:        30,
			CoarseMax:        35,
			CoarseStep:       1,
			TrimMargin:       5,
			Window:           time.Second,
			Flush:            time.Second,
			Settle:           time.Second,
			Verify:           false,
			PhysicsThreshold: 60,
		},
		Pulser: PulserConfig{
			Channel:   0,
			Count:     1000,
			DAC:       200,
			Threshold: 100,
			Listen:    100 * time.Millisecond,
		},
		Mock: MockConfig{
			Onset:       32,
			OnsetSpread: 1,
			TrimGain:    4,
			Rate:        40,
			MaxRate:     20000,
			Pedestal:    300,
			Spread:      12,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
// A zero numeric field counts as missing, so trim_margin and dac cannot be set
// to zero; both must be at least 1.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Board.Name == "" {
		c.Board.Name = def.Board.Name
	}

	if len(c.Scan.Channels) == 0 {
		c.Scan.Channels = def.Scan.Channels
	}
	if c.Scan.CoarseStep == 0 {
		c.Scan.CoarseStep = def.Scan.CoarseStep
	}
	if c.Scan.CoarseMin == 0 && c.Scan.CoarseMax == 0 {
		c.Scan.CoarseMin = def.Scan.CoarseMin
		c.Scan.CoarseMax = def.Scan.CoarseMax
	}
	if c.Scan.TrimMargin == 0 {
		c.Scan.TrimMargin = def.Scan.TrimMargin
	}
	if c.Scan.Window == 0 {
		c.Scan.Window = def.Scan.Window
	}
	if c.Scan.Flush == 0 {
		c.Scan.Flush = def.Scan.Flush
	}
	if c.Scan.Settle == 0 {
		c.Scan.Settle = def.Scan.Settle
	}
	if c.Scan.PhysicsThreshold == 0 {
		c.Scan.PhysicsThreshold = def.Scan.PhysicsThreshold
	}

	if c.Pulser.Count == 0 {
		c.Pulser.Count = def.Pulser.Count
	}
	if c.Pulser.DAC == 0 {
		c.Pulser.DAC = def.Pulser.DAC
	}
	if c.Pulser.Threshold == 0 {
		c.Pulser.Threshold = def.Pulser.Threshold
	}
	if c.Pulser.Listen == 0 {
		c.Pulser.Listen = def.Pulser.Listen
	}

	if c.Mock.Onset == 0 {
		c.Mock.Onset = def.Mock.Onset
	}
	if c.Mock.TrimGain == 0 {
		c.Mock.TrimGain = def.Mock.TrimGain
	}
	if c.Mock.Rate == 0 {
		c.Mock.Rate = def.Mock.Rate
	}
	if c.Mock.MaxRate == 0 {
		c.Mock.MaxRate = def.Mock.MaxRate
	}
	if c.Mock.Pedestal == 0 {
		c.Mock.Pedestal = def.Mock.Pedestal
	}
}
