// Package app provides configuration, the emulator worker and save states.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gones6502/internal/graphics"
)

var errInvalidValue = errors.New("invalid value")

// Config holds all application configuration
type Config struct {
	Window    WindowConfig    `json:"window"`
	Input     InputConfig     `json:"input"`
	Emulation EmulationConfig `json:"emulation"`
	Debug     DebugConfig     `json:"debug"`
	Paths     PathsConfig     `json:"paths"`

	// Internal state
	configPath string
	loaded     bool
}

// WindowConfig contains monitor window configuration
type WindowConfig struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Scale   int    `json:"scale"`
	Title   string `json:"title"`
	Backend string `json:"backend"` // "ebitengine", "terminal", "headless"
}

// InputConfig contains input configuration
type InputConfig struct {
	Player1Keys KeyMapping `json:"player1_keys"`
	Script      string     `json:"script"` // Lua script driving the controller
}

// KeyMapping represents keyboard key mappings for the controller
type KeyMapping struct {
	Up     string `json:"up"`
	Down   string `json:"down"`
	Left   string `json:"left"`
	Right  string `json:"right"`
	A      string `json:"a"`
	B      string `json:"b"`
	Start  string `json:"start"`
	Select string `json:"select"`
}

// buttonKeys maps the key names onto front-end buttons
func (k KeyMapping) buttonKeys() map[graphics.Button]string {
	return map[graphics.Button]string{
		graphics.ButtonUp:     k.Up,
		graphics.ButtonDown:   k.Down,
		graphics.ButtonLeft:   k.Left,
		graphics.ButtonRight:  k.Right,
		graphics.ButtonA:      k.A,
		graphics.ButtonB:      k.B,
		graphics.ButtonStart:  k.Start,
		graphics.ButtonSelect: k.Select,
	}
}

// EmulationConfig contains emulation-specific settings
type EmulationConfig struct {
	StartPC          string `json:"start_pc"`  // Hex address overriding the reset vector, "" for none
	MaxSteps         uint64 `json:"max_steps"` // 0 for no limit
	StepsPerTick     uint64 `json:"steps_per_tick"`
	HaltSentinel     bool   `json:"halt_sentinel"`
	ExecutionLogSize int    `json:"execution_log_size"`
	SaveStateSlots   int    `json:"save_state_slots"`
}

// DebugConfig contains debugging and development options
type DebugConfig struct {
	EnableLogging bool     `json:"enable_logging"`
	CPUTracing    bool     `json:"cpu_tracing"`
	TraceCycles   bool     `json:"trace_cycles"`
	TracePath     string   `json:"trace_path"`  // "" or "-" for stdout
	GoldenPath    string   `json:"golden_path"` // Reference log to compare against
	Statsview     bool     `json:"statsview"`
	DumpPath      string   `json:"dump_path"`
	Watch         []string `json:"watch"` // Hex addresses to monitor
}

// PathsConfig contains file and directory paths
type PathsConfig struct {
	SaveStates string `json:"save_states"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Width:   640,
			Height:  480,
			Scale:   1,
			Title:   "gones6502",
			Backend: "ebitengine",
		},
		Input: InputConfig{
			Player1Keys: KeyMapping{
				Up:     "W",
				Down:   "S",
				Left:   "A",
				Right:  "D",
				A:      "J",
				B:      "K",
				Start:  "Enter",
				Select: "Space",
			},
		},
		Emulation: EmulationConfig{
			StepsPerTick:     1000,
			HaltSentinel:     true,
			ExecutionLogSize: 64,
			SaveStateSlots:   10,
		},
		Paths: PathsConfig{
			SaveStates: "./states",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. A missing file is
// created with the current values.
func (c *Config) LoadFromFile(path string) error {
	c.configPath = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c.SaveToFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := c.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c.loaded = true
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	c.configPath = path
	return nil
}

// Save saves the configuration to the current config file
func (c *Config) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("no config file path set")
	}

	return c.SaveToFile(c.configPath)
}

// validate rejects malformed addresses and repairs out-of-range numbers
func (c *Config) validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return &ConfigError{
			Field: "window",
			Value: fmt.Sprintf("%dx%d", c.Window.Width, c.Window.Height),
			Err:   errInvalidValue,
		}
	}

	if c.Window.Scale <= 0 {
		c.Window.Scale = 1
	}

	switch c.Window.Backend {
	case "ebitengine", "terminal", "headless":
	case "":
		c.Window.Backend = "ebitengine"
	default:
		return &ConfigError{Field: "window.backend", Value: c.Window.Backend, Err: errInvalidValue}
	}

	if _, _, err := c.StartPC(); err != nil {
		return err
	}
	if _, err := c.WatchAddresses(); err != nil {
		return err
	}

	if c.Emulation.StepsPerTick == 0 {
		c.Emulation.StepsPerTick = 1000
	}

	if c.Emulation.SaveStateSlots <= 0 {
		c.Emulation.SaveStateSlots = 10
	}

	return nil
}

// StartPC parses the start PC override. ok is false when none is set.
func (c *Config) StartPC() (pc uint16, ok bool, err error) {
	if c.Emulation.StartPC == "" {
		return 0, false, nil
	}
	v, err := ParseAddress(c.Emulation.StartPC)
	if err != nil {
		return 0, false, &ConfigError{Field: "emulation.start_pc", Value: c.Emulation.StartPC, Err: err}
	}
	return v, true, nil
}

// WatchAddresses parses the debug watch list
func (c *Config) WatchAddresses() ([]uint16, error) {
	addrs := make([]uint16, 0, len(c.Debug.Watch))
	for _, s := range c.Debug.Watch {
		v, err := ParseAddress(s)
		if err != nil {
			return nil, &ConfigError{Field: "debug.watch", Value: s, Err: err}
		}
		addrs = append(addrs, v)
	}
	return addrs, nil
}

// ParseAddress parses a 16-bit address written as "C000", "$C000" or
// "0xC000"
func ParseAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: address %q", errInvalidValue, s)
	}
	return uint16(v), nil
}

// IsLoaded returns whether the configuration was loaded from file
func (c *Config) IsLoaded() bool {
	return c.loaded
}

// GetConfigPath returns the path to the config file
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	data, err := json.Marshal(c)
	if err != nil {
		return NewConfig()
	}

	clone := &Config{}
	if err := json.Unmarshal(data, clone); err != nil {
		return NewConfig()
	}

	clone.configPath = c.configPath
	clone.loaded = c.loaded

	return clone
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	return filepath.Join(GetDefaultConfigDir(), "config.json")
}

// GetDefaultConfigDir returns the default configuration directory, falling
// back to ./config when the user config directory is unknown
func GetDefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./config"
	}
	return filepath.Join(dir, "gones6502")
}

// ConfigError represents configuration-related errors
type ConfigError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field '%s' with value '%v': %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
