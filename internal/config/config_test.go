package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()

	if !cfg.GetEnabled(DeviceBoard) || !cfg.GetEnabled(DeviceLidar) {
		t.Error("board and lidar should be enabled by default")
	}
	if cfg.GetEnabled(DeviceESC) {
		t.Error("esc should be disabled by default")
	}
	if got := cfg.GetPath(DeviceBoard); got != "/dev/ttyAMA2" {
		t.Errorf("GetPath(board) = %q", got)
	}
	if got := cfg.GetPath(DeviceLidar); got != "/dev/serial0" {
		t.Errorf("GetPath(lidar) = %q", got)
	}
	if got := cfg.GetPath(DeviceESC); got != "/dev/ttyUSB0" {
		t.Errorf("GetPath(esc) = %q", got)
	}
	if got := cfg.PortOptions(DeviceESC).BaudRate; got != 115200 {
		t.Errorf("esc baud = %d, want 115200", got)
	}
	if got := cfg.GetReadTimeout(DeviceLidar); got != 100*time.Millisecond {
		t.Errorf("GetReadTimeout = %v", got)
	}
	if cfg.GetListen() != "localhost:8080" {
		t.Errorf("GetListen() = %q", cfg.GetListen())
	}
	if cfg.GetRecorderPath() != "" {
		t.Errorf("recorder should be disabled by default")
	}
	if cfg.GetScanHistory() != 16 {
		t.Errorf("GetScanHistory() = %d", cfg.GetScanHistory())
	}
	if cfg.GetStatsPeriod() != 30*time.Second {
		t.Errorf("GetStatsPeriod() = %v", cfg.GetStatsPeriod())
	}
}

func TestDefaultMatchesEmpty(t *testing.T) {
	def, empty := Default(), Empty()
	if err := def.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	for _, d := range []Device{DeviceBoard, DeviceLidar, DeviceESC} {
		if def.GetEnabled(d) != empty.GetEnabled(d) || def.GetPath(d) != empty.GetPath(d) {
			t.Errorf("%s: Default and Empty disagree", d)
		}
		if !def.PortOptions(d).Equal(empty.PortOptions(d)) {
			t.Errorf("%s: port options differ: %+v vs %+v", d, def.PortOptions(d), empty.PortOptions(d))
		}
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "mausd.json", `{
  "board": {"path": "/dev/ttyS1", "baud_rate": 115200, "read_timeout": "250ms"},
  "esc": {"enabled": true, "parity": "E"},
  "recorder_path": "/var/lib/mausd/maus.db",
  "listen": ":9090",
  "scan_history": 4
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.GetPath(DeviceBoard); got != "/dev/ttyS1" {
		t.Errorf("board path = %q", got)
	}
	opts := cfg.PortOptions(DeviceBoard)
	if opts.BaudRate != 115200 || opts.ReadTimeout != 250*time.Millisecond {
		t.Errorf("board options = %+v", opts)
	}
	if !cfg.GetEnabled(DeviceESC) {
		t.Error("esc should be enabled")
	}
	if got := cfg.PortOptions(DeviceESC).Parity; got != "E" {
		t.Errorf("esc parity = %q", got)
	}
	// untouched sections keep defaults
	if got := cfg.GetPath(DeviceLidar); got != DefaultLidarPath {
		t.Errorf("lidar path = %q", got)
	}
	if cfg.GetRecorderPath() != "/var/lib/mausd/maus.db" || cfg.GetListen() != ":9090" || cfg.GetScanHistory() != 4 {
		t.Errorf("unexpected top level values: %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"extension", "config.yaml", `{}`, ".json extension"},
		{"syntax", "bad.json", `{"listen": }`, "failed to parse"},
		{"unknown field", "unknown.json", `{"lister": ":80"}`, "failed to parse"},
		{"read timeout", "timeout.json", `{"lidar": {"read_timeout": "soon"}}`, "lidar.read_timeout"},
		{"negative timeout", "neg.json", `{"lidar": {"read_timeout": "-1s"}}`, "must be positive"},
		{"baud", "baud.json", `{"board": {"baud_rate": 12345}}`, "invalid board serial options"},
		{"empty path", "path.json", `{"esc": {"path": " "}}`, "esc.path"},
		{"history", "history.json", `{"scan_history": -1}`, "scan_history"},
		{"stats period", "stats.json", `{"stats_period": "often"}`, "stats_period"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			if err == nil {
				t.Fatalf("Load() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_TooLarge(t *testing.T) {
	body := `{"listen": "` + strings.Repeat("x", 1024*1024) + `"}`
	if _, err := Load(writeConfig(t, "big.json", body)); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestMustLoadDefault(t *testing.T) {
	cfg := MustLoadDefault()
	def := Default()
	for _, d := range []Device{DeviceBoard, DeviceLidar, DeviceESC} {
		if cfg.GetEnabled(d) != def.GetEnabled(d) || cfg.GetPath(d) != def.GetPath(d) {
			t.Errorf("%s: checked-in defaults drifted from Default()", d)
		}
		if !cfg.PortOptions(d).Equal(def.PortOptions(d)) {
			t.Errorf("%s: port options drifted", d)
		}
	}
	if cfg.GetListen() != def.GetListen() || cfg.GetScanHistory() != def.GetScanHistory() {
		t.Error("top level defaults drifted")
	}
}

func TestSetEnabled(t *testing.T) {
	cfg := Empty()
	cfg.SetEnabled(DeviceLidar, false)
	cfg.SetEnabled(DeviceESC, true)
	if cfg.GetEnabled(DeviceLidar) || !cfg.GetEnabled(DeviceESC) {
		t.Error("SetEnabled had no effect")
	}
	if cfg.Board != nil {
		t.Error("SetEnabled touched an unrelated section")
	}
	cfg.SetEnabled(Device("bogus"), true)
}

func TestGetReadTimeout_BadValueFallsBack(t *testing.T) {
	bad := "nonsense"
	cfg := &Config{Lidar: &DeviceConfig{ReadTimeout: &bad}}
	if got := cfg.GetReadTimeout(DeviceLidar); got != DefaultReadTimeout {
		t.Errorf("GetReadTimeout = %v, want default", got)
	}
}
