// Package config loads and validates the kraken-bridge YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Housing     HousingConfig     `yaml:"housing"`
	Adb         AdbConfig         `yaml:"adb"`
	Apps        AppsConfig        `yaml:"apps"`
	Timing      TimingConfig      `yaml:"timing"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Journal     JournalConfig     `yaml:"journal"`
}

// HousingConfig identifies the BLE housing to pair with. If Address is set the
// bridge connects directly; otherwise it scans for the first advertiser whose
// local name starts with NamePrefix.
type HousingConfig struct {
	Address    string `yaml:"address"`
	NamePrefix string `yaml:"name_prefix"`
}

// AdbConfig points at the adb binary and target device.
type AdbConfig struct {
	Path           string `yaml:"path"`
	Serial         string `yaml:"serial"`
	CommandTimeout int    `yaml:"command_timeout_seconds"`
}

// AppsConfig names the two target application packages.
type AppsConfig struct {
	Camera  string `yaml:"camera"`
	Gallery string `yaml:"gallery"`
}

// TimingConfig holds the empirically tuned delays, in milliseconds.
type TimingConfig struct {
	DebounceMs     int `yaml:"debounce_ms"`      // duplicate-notification window
	WakeSettleMs   int `yaml:"wake_settle_ms"`   // pause after waking the screen
	LaunchSettleMs int `yaml:"launch_settle_ms"` // pause after an app launch before a dependent tap
	DeleteTrashMs  int `yaml:"delete_trash_ms"`  // show-controls -> trash tap
	DeleteAgreeMs  int `yaml:"delete_agree_ms"`  // show-controls -> confirm tap
	SwipeMs        int `yaml:"swipe_ms"`         // gallery swipe stroke duration
}

// Point is a screen position expressed as fractions of width and height.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// CalibrationConfig holds the fixed-coordinate fallbacks for every UI target,
// tuned against the known layouts of the target apps. Reloadable at runtime.
type CalibrationConfig struct {
	Shutter     Point `yaml:"shutter"`
	ModeToggle  Point `yaml:"mode_toggle"`
	FocusCenter Point `yaml:"focus_center"`
	FocusNear   Point `yaml:"focus_near"`
	FocusFar    Point `yaml:"focus_far"`
	Trash       Point `yaml:"trash"`
	Confirm     Point `yaml:"confirm"`
	SwipeEdgeL  Point `yaml:"swipe_edge_left"`
	SwipeEdgeR  Point `yaml:"swipe_edge_right"`
}

// JournalConfig configures the sqlite dive journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "kraken-bridge")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values. The calibration
// defaults match Open Camera and Simple Gallery in portrait orientation.
func Default() *Config {
	home, _ := os.UserHomeDir()
	journalPath := filepath.Join(home, ".local", "share", "kraken-bridge", "journal.db")

	return &Config{
		LogLevel: "info",
		Housing: HousingConfig{
			NamePrefix: "Kraken",
		},
		Adb: AdbConfig{
			Path:           "adb",
			CommandTimeout: 30,
		},
		Apps: AppsConfig{
			Camera:  "net.sourceforge.opencamera",
			Gallery: "com.simplemobiletools.gallery.pro",
		},
		Timing: TimingConfig{
			DebounceMs:     100,
			WakeSettleMs:   350,
			LaunchSettleMs: 800,
			DeleteTrashMs:  200,
			DeleteAgreeMs:  1500,
			SwipeMs:        300,
		},
		Calibration: CalibrationConfig{
			Shutter:     Point{X: 0.50, Y: 0.88},
			ModeToggle:  Point{X: 0.91, Y: 0.12},
			FocusCenter: Point{X: 0.50, Y: 0.50},
			FocusNear:   Point{X: 0.50, Y: 0.72},
			FocusFar:    Point{X: 0.50, Y: 0.30},
			Trash:       Point{X: 0.92, Y: 0.93},
			Confirm:     Point{X: 0.63, Y: 0.58},
			SwipeEdgeL:  Point{X: 0.25, Y: 0.50},
			SwipeEdgeR:  Point{X: 0.75, Y: 0.50},
		},
		Journal: JournalConfig{
			Path: journalPath,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled with
// defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Journal.Path = expandTilde(cfg.Journal.Path)
	cfg.Adb.Path = expandTilde(cfg.Adb.Path)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Housing.Address == "" && c.Housing.NamePrefix == "" {
		return fmt.Errorf("housing.address or housing.name_prefix must be set")
	}

	if c.Adb.Path == "" {
		return fmt.Errorf("adb.path must not be empty")
	}

	if c.Adb.CommandTimeout <= 0 {
		return fmt.Errorf("adb.command_timeout_seconds must be > 0")
	}

	if c.Apps.Camera == "" {
		return fmt.Errorf("apps.camera must not be empty")
	}

	if c.Apps.Gallery == "" {
		return fmt.Errorf("apps.gallery must not be empty")
	}

	if c.Timing.DebounceMs <= 0 {
		return fmt.Errorf("timing.debounce_ms must be > 0")
	}

	if c.Timing.DeleteAgreeMs <= c.Timing.DeleteTrashMs {
		return fmt.Errorf("timing.delete_agree_ms must be > timing.delete_trash_ms")
	}

	if err := c.Calibration.validate(); err != nil {
		return err
	}

	return nil
}

func (c *CalibrationConfig) validate() error {
	points := map[string]Point{
		"shutter":          c.Shutter,
		"mode_toggle":      c.ModeToggle,
		"focus_center":     c.FocusCenter,
		"focus_near":       c.FocusNear,
		"focus_far":        c.FocusFar,
		"trash":            c.Trash,
		"confirm":          c.Confirm,
		"swipe_edge_left":  c.SwipeEdgeL,
		"swipe_edge_right": c.SwipeEdgeR,
	}
	for name, p := range points {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			return fmt.Errorf("calibration.%s must be within [0,1] fractions, got (%v, %v)", name, p.X, p.Y)
		}
	}
	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
