package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/mausbridge/internal/serialport"
)

// DefaultConfigPath is the checked-in default configuration.
const DefaultConfigPath = "config/mausd.defaults.json"

const (
	DefaultBoardPath   = "/dev/ttyAMA2"
	DefaultLidarPath   = "/dev/serial0"
	DefaultESCPath     = "/dev/ttyUSB0"
	DefaultBoardBaud   = 230400
	DefaultLidarBaud   = 230400
	DefaultESCBaud     = 115200
	DefaultReadTimeout = 100 * time.Millisecond
	DefaultListen      = "localhost:8080"
	DefaultScanHistory = 16
	DefaultStatsPeriod = 30 * time.Second
)

// DeviceConfig describes one serial device. Unset fields fall back to the
// defaults of the device it configures.
type DeviceConfig struct {
	Enabled     *bool   `json:"enabled,omitempty"`
	Path        *string `json:"path,omitempty"`
	BaudRate    *int    `json:"baud_rate,omitempty"`
	DataBits    *int    `json:"data_bits,omitempty"`
	StopBits    *int    `json:"stop_bits,omitempty"`
	Parity      *string `json:"parity,omitempty"`
	ReadTimeout *string `json:"read_timeout,omitempty"` // duration string like "100ms"
}

// Config is the daemon configuration.
type Config struct {
	Board *DeviceConfig `json:"board,omitempty"`
	Lidar *DeviceConfig `json:"lidar,omitempty"`
	ESC   *DeviceConfig `json:"esc,omitempty"`

	// RecorderPath is the sqlite database file. Empty disables recording.
	RecorderPath *string `json:"recorder_path,omitempty"`
	Listen       *string `json:"listen,omitempty"`
	// ScanHistory is how many scan summaries the debug pages keep.
	ScanHistory *int    `json:"scan_history,omitempty"`
	StatsPeriod *string `json:"stats_period,omitempty"`
}

// Device identifies one of the configured serial devices.
type Device string

const (
	DeviceBoard Device = "board"
	DeviceLidar Device = "lidar"
	DeviceESC   Device = "esc"
)

type deviceDefaults struct {
	enabled bool
	path    string
	baud    int
}

var defaults = map[Device]deviceDefaults{
	DeviceBoard: {enabled: true, path: DefaultBoardPath, baud: DefaultBoardBaud},
	DeviceLidar: {enabled: true, path: DefaultLidarPath, baud: DefaultLidarBaud},
	DeviceESC:   {enabled: false, path: DefaultESCPath, baud: DefaultESCBaud},
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// Empty returns a Config with every field unset. The Get* methods supply
// defaults.
func Empty() *Config {
	return &Config{}
}

// Default returns a Config with every field set to its default value.
func Default() *Config {
	dev := func(d Device) *DeviceConfig {
		def := defaults[d]
		return &DeviceConfig{
			Enabled:     ptrBool(def.enabled),
			Path:        ptrString(def.path),
			BaudRate:    ptrInt(def.baud),
			DataBits:    ptrInt(8),
			StopBits:    ptrInt(1),
			Parity:      ptrString("N"),
			ReadTimeout: ptrString(DefaultReadTimeout.String()),
		}
	}
	return &Config{
		Board:        dev(DeviceBoard),
		Lidar:        dev(DeviceLidar),
		ESC:          dev(DeviceESC),
		RecorderPath: ptrString(""),
		Listen:       ptrString(DefaultListen),
		ScanHistory:  ptrInt(DefaultScanHistory),
		StatsPeriod:  ptrString(DefaultStatsPeriod.String()),
	}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be under 1 MiB. Fields omitted from the file keep their
// defaults, so partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefault loads DefaultConfigPath, searching upwards from the
// working directory. It panics if the file cannot be loaded and is intended
// for test setup.
func MustLoadDefault() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set value is usable.
func (c *Config) Validate() error {
	for _, d := range []Device{DeviceBoard, DeviceLidar, DeviceESC} {
		dc := c.device(d)
		if dc == nil {
			continue
		}
		if dc.ReadTimeout != nil && *dc.ReadTimeout != "" {
			timeout, err := time.ParseDuration(*dc.ReadTimeout)
			if err != nil {
				return fmt.Errorf("invalid %s.read_timeout '%s': %w", d, *dc.ReadTimeout, err)
			}
			if timeout <= 0 {
				return fmt.Errorf("%s.read_timeout must be positive, got %s", d, timeout)
			}
		}
		if dc.Path != nil && strings.TrimSpace(*dc.Path) == "" {
			return fmt.Errorf("%s.path must not be empty", d)
		}
		if _, err := c.PortOptions(d).Normalize(); err != nil {
			return fmt.Errorf("invalid %s serial options: %w", d, err)
		}
	}

	if c.ScanHistory != nil && *c.ScanHistory < 0 {
		return fmt.Errorf("scan_history must be non-negative, got %d", *c.ScanHistory)
	}
	if c.StatsPeriod != nil && *c.StatsPeriod != "" {
		if _, err := time.ParseDuration(*c.StatsPeriod); err != nil {
			return fmt.Errorf("invalid stats_period '%s': %w", *c.StatsPeriod, err)
		}
	}
	return nil
}

func (c *Config) section(d Device) **DeviceConfig {
	switch d {
	case DeviceBoard:
		return &c.Board
	case DeviceLidar:
		return &c.Lidar
	case DeviceESC:
		return &c.ESC
	}
	return nil
}

func (c *Config) device(d Device) *DeviceConfig {
	if sec := c.section(d); sec != nil {
		return *sec
	}
	return nil
}

// GetEnabled reports whether device d should be started.
func (c *Config) GetEnabled(d Device) bool {
	if dc := c.device(d); dc != nil && dc.Enabled != nil {
		return *dc.Enabled
	}
	return defaults[d].enabled
}

// GetPath returns the device path for d.
func (c *Config) GetPath(d Device) string {
	if dc := c.device(d); dc != nil && dc.Path != nil && *dc.Path != "" {
		return *dc.Path
	}
	return defaults[d].path
}

// GetReadTimeout returns the per-read timeout for d.
func (c *Config) GetReadTimeout(d Device) time.Duration {
	dc := c.device(d)
	if dc == nil || dc.ReadTimeout == nil || *dc.ReadTimeout == "" {
		return DefaultReadTimeout
	}
	timeout, err := time.ParseDuration(*dc.ReadTimeout)
	if err != nil || timeout <= 0 {
		return DefaultReadTimeout
	}
	return timeout
}

// PortOptions returns the serial options for d with defaults applied for
// the baud rate and read timeout. Other fields are left for
// serialport.PortOptions.Normalize.
func (c *Config) PortOptions(d Device) serialport.PortOptions {
	opts := serialport.PortOptions{
		BaudRate:    defaults[d].baud,
		ReadTimeout: c.GetReadTimeout(d),
	}
	dc := c.device(d)
	if dc == nil {
		return opts
	}
	if dc.BaudRate != nil {
		opts.BaudRate = *dc.BaudRate
	}
	if dc.DataBits != nil {
		opts.DataBits = *dc.DataBits
	}
	if dc.StopBits != nil {
		opts.StopBits = *dc.StopBits
	}
	if dc.Parity != nil {
		opts.Parity = *dc.Parity
	}
	return opts
}

// SetEnabled overrides the enabled flag for d, creating the section if
// needed. Used for command line overrides.
func (c *Config) SetEnabled(d Device, enabled bool) {
	sec := c.section(d)
	if sec == nil {
		return
	}
	if *sec == nil {
		*sec = &DeviceConfig{}
	}
	(*sec).Enabled = ptrBool(enabled)
}

// GetRecorderPath returns the sqlite path, or "" when recording is off.
func (c *Config) GetRecorderPath() string {
	if c.RecorderPath == nil {
		return ""
	}
	return *c.RecorderPath
}

// GetListen returns the HTTP listen address.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}

// GetScanHistory returns how many scan summaries to keep in memory.
func (c *Config) GetScanHistory() int {
	if c.ScanHistory == nil {
		return DefaultScanHistory
	}
	return *c.ScanHistory
}

// GetStatsPeriod returns how often throughput is logged.
func (c *Config) GetStatsPeriod() time.Duration {
	if c.StatsPeriod == nil || *c.StatsPeriod == "" {
		return DefaultStatsPeriod
	}
	d, err := time.ParseDuration(*c.StatsPeriod)
	if err != nil {
		return DefaultStatsPeriod
	}
	return d
}
