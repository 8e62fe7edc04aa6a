package serial

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML: accepts either a Go duration
// string ("500ms") or a bare integer of milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		var ms int64
		if err := value.Decode(&ms); err != nil {
			return err
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Get() time.Duration {
	return time.Duration(d)
}

// PortDefaults configures the settings applied to newly discovered
// sessions until the frontend overrides them.
type PortDefaults struct {
	BaudRate int    `yaml:"baud_rate" validate:"omitempty,min=4800"`
	DataBits int    `yaml:"data_bits" validate:"omitempty,min=5,max=8"`
	StopBits string `yaml:"stop_bits" validate:"omitempty,oneof=1 1.5 2"`
	Parity   string `yaml:"parity" validate:"omitempty,oneof=N E O M S"`
	LineFeed bool   `yaml:"line_feed"`
	Scheme   string `yaml:"scheme"`
}

// Config is the application-level configuration.
type Config struct {
	// LogDir is the fixed directory for per-session traffic logs.
	LogDir string `yaml:"log_dir" validate:"required"`

	// DiscoveryInterval is the OS port list poll period.
	DiscoveryInterval Duration `yaml:"discovery_interval"`

	// TickInterval is the frontend scheduler period.
	TickInterval Duration `yaml:"tick_interval"`

	// ChannelCapacity bounds each bridge channel.
	ChannelCapacity int `yaml:"channel_capacity" validate:"min=1,max=10000"`

	// ReadBufferSize is the fixed read buffer size per read call.
	ReadBufferSize int `yaml:"read_buffer_size" validate:"min=64,max=65536"`

	Defaults PortDefaults `yaml:"defaults"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		LogDir:            "logs",
		DiscoveryInterval: Duration(500 * time.Millisecond),
		TickInterval:      Duration(50 * time.Millisecond),
		ChannelCapacity:   100,
		ReadBufferSize:    1024,
	}
}

// LoadConfig reads a YAML config file over the built-in defaults. An
// empty path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints plus the cases struct tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.DiscoveryInterval.Get() < 0 {
		return fmt.Errorf("discovery interval cannot be negative: %v", c.DiscoveryInterval.Get())
	}
	if c.TickInterval.Get() < 0 {
		return fmt.Errorf("tick interval cannot be negative: %v", c.TickInterval.Get())
	}
	if c.Defaults.Scheme != "" {
		if _, err := ParseScheme(c.Defaults.Scheme); err != nil {
			return err
		}
	}
	return nil
}

// PortSettings builds the initial settings for a discovered port from
// the configured defaults.
func (c *Config) PortSettings(name string) PortSettings {
	s := DefaultSettings(name)
	if c.Defaults.BaudRate > 0 {
		s.BaudRate = BaudRate(c.Defaults.BaudRate)
	}
	if c.Defaults.DataBits > 0 {
		s.DataBits = DataBits(c.Defaults.DataBits)
	}
	switch c.Defaults.StopBits {
	case "1.5":
		s.StopBits = StopBits1Half
	case "2":
		s.StopBits = StopBits2
	}
	switch c.Defaults.Parity {
	case "E":
		s.Parity = ParityEven
	case "O":
		s.Parity = ParityOdd
	case "M":
		s.Parity = ParityMark
	case "S":
		s.Parity = ParitySpace
	}
	return s
}
