// Package config loads the daemon configuration from a YAML file, creating
// a default one on first run.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	// Latitude and Longitude of the lamp, decimal degrees.
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`

	// UTCOffsetMinutes is the standard-time offset from UTC. DST is handled
	// by the clock, not here.
	UTCOffsetMinutes int `yaml:"utc_offset_minutes"`

	// RelayPin is the BCM number of the relay output.
	RelayPin int `yaml:"relay_pin"`

	// Rotary encoder pins (BCM numbering).
	RotaryPinA      int `yaml:"rotary_pin_a"`
	RotaryPinB      int `yaml:"rotary_pin_b"`
	RotaryPinButton int `yaml:"rotary_pin_button"`

	// I2CBus is the bus the RTC is on. Empty selects the first available.
	I2CBus string `yaml:"i2c_bus"`

	// Broker is the MQTT broker URL. Empty disables MQTT.
	Broker string `yaml:"broker"`

	// HTTPAddr is the web server listen address.
	HTTPAddr string `yaml:"http_addr"`

	// DBPath is the sqlite settings database.
	DBPath string `yaml:"db_path"`

	// PollMs is the main loop tick interval.
	PollMs int64 `yaml:"poll_ms"`

	// HeartbeatMs is the interval between heartbeat status events.
	// Zero disables the heartbeat.
	HeartbeatMs int64 `yaml:"heartbeat_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Latitude:         52.097105,
		Longitude:        5.068294,
		UTCOffsetMinutes: 60,
		RelayPin:         17,
		RotaryPinA:       23,
		RotaryPinB:       24,
		RotaryPinButton:  25,
		Broker:           "tcp://localhost:1883",
		HTTPAddr:         ":8080",
		DBPath:           "/var/lib/lamp-timer/settings.db",
		PollMs:           1000,
		HeartbeatMs:      900000,
	}
}

// Normalize fills in missing values so that partially filled configs from
// older versions still behave correctly.
func (c *Config) Normalize() {
	def := Default()
	if c.Latitude == 0 && c.Longitude == 0 {
		c.Latitude = def.Latitude
		c.Longitude = def.Longitude
	}
	if c.RelayPin == 0 {
		c.RelayPin = def.RelayPin
	}
	if c.RotaryPinA == 0 {
		c.RotaryPinA = def.RotaryPinA
	}
	if c.RotaryPinB == 0 {
		c.RotaryPinB = def.RotaryPinB
	}
	if c.RotaryPinButton == 0 {
		c.RotaryPinButton = def.RotaryPinButton
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = def.HTTPAddr
	}
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.PollMs <= 0 {
		c.PollMs = def.PollMs
	}
}

// Load reads the configuration at path. A missing file is created with the
// defaults and 0600 permissions.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Write to a temp file in the same directory, then rename.
	tmp, err := os.CreateTemp(dir, ".lamp-timer-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
