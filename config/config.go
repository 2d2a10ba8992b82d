package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"markestedt/keyrecorder/platform"
)

type Config struct {
	Hotkeys   HotkeyConfig    `toml:"hotkeys"`
	Recording RecordingConfig `toml:"recording"`
	Playback  PlaybackConfig  `toml:"playback"`
	Web       WebConfig       `toml:"web"`
	Tray      TrayConfig      `toml:"tray"`
}

type HotkeyConfig struct {
	Record string `toml:"record"`
	Play   string `toml:"play"`
}

type RecordingConfig struct {
	IntervalMS int    `toml:"interval_ms"`
	Dir        string `toml:"dir"`
}

type PlaybackConfig struct {
	LoopDelayMS    int    `toml:"loop_delay_ms"`
	PositionStep   int    `toml:"position_step"`
	PositionTickMS int    `toml:"position_tick_ms"`
	MouseSpeed     int    `toml:"mouse_speed"`
	SortByTime     bool   `toml:"sort_by_time"`
	LastSelected   string `toml:"last_selected"`
}

type WebConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

type TrayConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		Hotkeys: HotkeyConfig{
			Record: "F7",
			Play:   "F8",
		},
		Recording: RecordingConfig{
			IntervalMS: 10,
			Dir:        "",
		},
		Playback: PlaybackConfig{
			LoopDelayMS:    500,
			PositionStep:   10,
			PositionTickMS: 15,
			MouseSpeed:     10,
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8474,
		},
		Tray: TrayConfig{
			Enabled: true,
		},
	}
}

func appDataDir() string {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		appData = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
	}
	return appData
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	configDir := filepath.Join(appDataDir(), "keyrecorder")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.toml"), nil
}

// DataDir returns the directory that holds the session journal.
func DataDir() string {
	return filepath.Join(appDataDir(), "keyrecorder")
}

// Load loads the configuration from the TOML file
// If the file doesn't exist, it creates it with default values
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	// If config doesn't exist, create it with defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := defaultConfig()
		if err := save(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	// Load existing config
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// Save writes cfg back to the configuration file.
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	return save(configPath, cfg)
}

// save writes the configuration to the TOML file
func save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	var errs []error

	if _, err := platform.VKCode(c.Hotkeys.Record); err != nil {
		errs = append(errs, fmt.Errorf("hotkeys.record: %w", err))
	}
	if _, err := platform.VKCode(c.Hotkeys.Play); err != nil {
		errs = append(errs, fmt.Errorf("hotkeys.play: %w", err))
	}
	if strings.EqualFold(strings.TrimSpace(c.Hotkeys.Record), strings.TrimSpace(c.Hotkeys.Play)) {
		errs = append(errs, fmt.Errorf("hotkeys.record and hotkeys.play are both %q", c.Hotkeys.Record))
	}

	if c.Recording.IntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("recording.interval_ms must be positive, got %d", c.Recording.IntervalMS))
	}
	if c.Playback.LoopDelayMS < 0 {
		errs = append(errs, fmt.Errorf("playback.loop_delay_ms must not be negative, got %d", c.Playback.LoopDelayMS))
	}
	if c.Playback.PositionStep <= 0 {
		errs = append(errs, fmt.Errorf("playback.position_step must be positive, got %d", c.Playback.PositionStep))
	}
	if c.Playback.PositionTickMS <= 0 {
		errs = append(errs, fmt.Errorf("playback.position_tick_ms must be positive, got %d", c.Playback.PositionTickMS))
	}
	if c.Playback.MouseSpeed < 1 || c.Playback.MouseSpeed > 20 {
		errs = append(errs, fmt.Errorf("playback.mouse_speed must be between 1 and 20, got %d", c.Playback.MouseSpeed))
	}
	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		errs = append(errs, fmt.Errorf("web.port out of range: %d", c.Web.Port))
	}

	return errors.Join(errs...)
}

// RecordsDir returns the directory where recordings are stored.
func (c *Config) RecordsDir() string {
	if c.Recording.Dir != "" {
		return c.Recording.Dir
	}
	local := os.Getenv("LOCALAPPDATA")
	if local == "" {
		local = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
	}
	return filepath.Join(local, "KeyRecorderData")
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.Recording.IntervalMS) * time.Millisecond
}

func (c *Config) LoopDelay() time.Duration {
	return time.Duration(c.Playback.LoopDelayMS) * time.Millisecond
}

func (c *Config) PositionTick() time.Duration {
	return time.Duration(c.Playback.PositionTickMS) * time.Millisecond
}
