package device

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/p100-protocol/p100-go/pkg/protocol"
)

// Config errors.
var (
	// ErrNoEndpoint indicates a config with neither a host nor a serial
	// port.
	ErrNoEndpoint = errors.New("config: either host or serial_port must be set")

	// ErrEndpointConflict indicates a config naming both a host and a
	// serial port.
	ErrEndpointConflict = errors.New("config: host and serial_port are mutually exclusive")
)

// Duration wraps time.Duration for YAML configs, accepting strings like
// "5s" or "250ms".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config describes one device endpoint. Exactly one of Host and
// SerialPort must be set.
type Config struct {
	// Host is the device's address for the TCP control port.
	Host string `yaml:"host,omitempty"`

	// Port is the TCP control port. Zero selects the device default.
	Port int `yaml:"port,omitempty"`

	// SerialPort is the serial device path, e.g. /dev/ttyUSB0.
	SerialPort string `yaml:"serial_port,omitempty"`

	// BaudRate is the serial link speed. Zero selects the device default.
	BaudRate int `yaml:"baud_rate,omitempty"`

	// FeedbackLevel is negotiated on every connection.
	FeedbackLevel protocol.FeedbackLevel `yaml:"feedback_level"`

	// CommandTimeout is the reply deadline for commands without their own.
	CommandTimeout Duration `yaml:"command_timeout,omitempty"`

	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout Duration `yaml:"connect_timeout,omitempty"`

	// DisableReconnect turns automatic reconnection off.
	DisableReconnect bool `yaml:"disable_reconnect,omitempty"`

	// CaptureFile, when set, records all protocol traffic to a CBOR
	// capture file.
	CaptureFile string `yaml:"capture_file,omitempty"`
}

// DefaultConfig returns a config with the device defaults filled in. The
// endpoint is left empty.
func DefaultConfig() Config {
	return Config{
		Port:           protocol.DefaultTCPPort,
		BaudRate:       protocol.DefaultBaudRate,
		FeedbackLevel:  protocol.FeedbackStatus,
		CommandTimeout: Duration(protocol.DefaultCommandTimeout),
		ConnectTimeout: Duration(protocol.DefaultConnectTimeout),
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the config for contradictions.
func (c Config) Validate() error {
	switch {
	case c.Host == "" && c.SerialPort == "":
		return ErrNoEndpoint
	case c.Host != "" && c.SerialPort != "":
		return ErrEndpointConflict
	}
	if !c.FeedbackLevel.Valid() {
		return fmt.Errorf("config: invalid feedback_level %d", c.FeedbackLevel)
	}
	return nil
}

// applyDefaults fills zero fields with the device defaults.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = protocol.DefaultTCPPort
	}
	if c.BaudRate == 0 {
		c.BaudRate = protocol.DefaultBaudRate
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = Duration(protocol.DefaultCommandTimeout)
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = Duration(protocol.DefaultConnectTimeout)
	}
}
