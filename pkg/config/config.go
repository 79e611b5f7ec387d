package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Serial backends.
const (
	BackendBugst = "bugst" // go.bug.st/serial
	BackendTarm  = "tarm"  // github.com/tarm/serial
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Timer       TimerConfig       `yaml:"timer"`
	Measurement MeasurementConfig `yaml:"measurement"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	Backend     string        `yaml:"backend"`      // "bugst" (default) or "tarm"
	ReadTimeout time.Duration `yaml:"read_timeout"` // tarm backend only, 0 = blocking
}

// TimerConfig describes the firmware's master timer so counts can be turned
// into time. It must match the firmware build.
type TimerConfig struct {
	ClockHz float64 `yaml:"clock_hz"` // timer input clock
	Divider uint16  `yaml:"divider"`  // prescaler, counter runs at ClockHz/(Divider+1)
	Ceiling uint16  `yaml:"ceiling"`  // master auto-reload value
}

// MeasurementConfig contains measurement parameters.
type MeasurementConfig struct {
	WindowSeconds float64 `yaml:"window_seconds"`
	RateTolerance float64 `yaml:"rate_tolerance"` // Allowed relative deviation from the nominal tick rate
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	SampleRate     time.Duration `yaml:"sample_rate"`      // How often the mock emits a line
	TicksPerSample uint64        `yaml:"ticks_per_sample"` // Timer input clocks between lines (0 = derive from clock_hz)
	StartValue     uint32        `yaml:"start_value"`      // Initial 32-bit counter value
}

// TickHz returns the master counter rate in counts per second.
func (t TimerConfig) TickHz() float64 {
	return t.ClockHz / (float64(t.Divider) + 1)
}

// Period returns the number of master counts per slave increment.
func (t TimerConfig) Period() uint64 {
	return uint64(t.Ceiling) + 1
}

// Default returns a default configuration matching the bluepill firmware.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 115200,
			Backend:  BackendBugst,
		},
		Timer: TimerConfig{
			ClockHz: 72000000,
			Divider: 0xFF,
			Ceiling: 0xFFFF,
		},
		Measurement: MeasurementConfig{
			WindowSeconds: 10,
			RateTolerance: 0.01,
		},
		Mock: MockConfig{
			SampleRate:     20 * time.Millisecond, // 50 lines per second
			TicksPerSample: 0,
			StartValue:     0,
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

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

// Validate reports settings no component can work with.
func (c *Config) Validate() error {
	switch c.Serial.Backend {
	case BackendBugst, BackendTarm:
	default:
		return fmt.Errorf("unknown serial backend %q", c.Serial.Backend)
	}
	if c.Timer.ClockHz <= 0 {
		return fmt.Errorf("timer clock_hz must be positive, got %v", c.Timer.ClockHz)
	}
	if c.Measurement.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive, got %v", c.Measurement.WindowSeconds)
	}
	if c.Measurement.RateTolerance < 0 {
		return fmt.Errorf("rate_tolerance must not be negative, got %v", c.Measurement.RateTolerance)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.Backend == "" {
		c.Serial.Backend = def.Serial.Backend
	}

	// A zero divider is valid, a zero ceiling is not.
	if c.Timer.ClockHz == 0 {
		c.Timer.ClockHz = def.Timer.ClockHz
	}
	if c.Timer.Ceiling == 0 {
		c.Timer.Ceiling = def.Timer.Ceiling
	}

	if c.Measurement.WindowSeconds == 0 {
		c.Measurement.WindowSeconds = def.Measurement.WindowSeconds
	}
	if c.Measurement.RateTolerance == 0 {
		c.Measurement.RateTolerance = def.Measurement.RateTolerance
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
}
