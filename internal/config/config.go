// Package config provides configuration management for the typing engine:
// thresholds, per-side layouts, the layered key table and daemon settings.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"padkeys/internal/classifier"
	"padkeys/internal/keymap"
	"padkeys/internal/layout"
	"padkeys/internal/touch"
)

// Config is the application configuration as persisted on disk.
type Config struct {
	// General contains daemon-level settings.
	General GeneralConfig `json:"general"`

	// Thresholds are the classifier timing/distance parameters.
	Thresholds ThresholdsConfig `json:"thresholds"`

	// Layouts maps "left"/"right" to the side's geometry.
	Layouts map[string]LayoutConfig `json:"layouts"`

	// Keymap maps layer number -> side -> "row:col" -> mapping.
	Keymap map[string]map[string]map[string]MappingConfig `json:"keymap"`
}

// GeneralConfig contains daemon-level settings.
type GeneralConfig struct {
	// TypingEnabled is the initial state of the typing flag.
	TypingEnabled bool `json:"typing_enabled"`

	// MouseTakeover lets a dragging finger reclassify as pointer movement.
	MouseTakeover bool `json:"mouse_takeover"`

	// TapClick enables tap-to-click while in mouse mode.
	TapClick bool `json:"tap_click"`

	// ChordalShift enables cross-side chording in clients that honor it.
	// Carried by the engine and published through status.
	ChordalShift bool `json:"chordal_shift"`

	// Haptics asks the device bridge to vibrate on key events.
	Haptics bool `json:"haptics"`

	// DebugHits enables resolved-binding notifications.
	DebugHits bool `json:"debug_hits"`

	// APIEnabled enables the HTTP/WebSocket control server.
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the control server port.
	APIPort int `json:"api_port"`

	// APIToken is an optional bearer token for API requests.
	APIToken string `json:"api_token,omitempty"`

	// FramePort is the UDP port the device bridge streams touch frames to.
	FramePort int `json:"frame_port"`

	// PointerScale is pointer speed in pixels per normalized surface unit.
	PointerScale int `json:"pointer_scale"`

	// StartOnBoot registers the daemon as a login item.
	StartOnBoot bool `json:"start_on_boot"`

	// EscapeChord is the emergency chord that disables typing
	// (e.g. "Ctrl+Alt+Shift+Esc"). Empty disables the watcher.
	EscapeChord string `json:"escape_chord,omitempty"`
}

// ThresholdsConfig mirrors classifier.Thresholds in JSON-friendly units.
type ThresholdsConfig struct {
	HoldMs             int     `json:"hold_ms"`
	DragCancelDistance float64 `json:"drag_cancel_distance"`
	TapClickMs         int     `json:"tap_click_ms"`
	MoveSpeed          float64 `json:"move_speed"`
	RepeatDelayMs      int     `json:"repeat_delay_ms"`
	RepeatIntervalMs   int     `json:"repeat_interval_ms"`
}

// Thresholds converts to classifier units, falling back to defaults for
// unset fields.
func (t ThresholdsConfig) Thresholds() classifier.Thresholds {
	out := classifier.DefaultThresholds()
	if t.HoldMs > 0 {
		out.Hold = time.Duration(t.HoldMs) * time.Millisecond
	}
	if t.DragCancelDistance > 0 {
		out.DragCancelDistance = t.DragCancelDistance
	}
	if t.TapClickMs > 0 {
		out.TapClick = time.Duration(t.TapClickMs) * time.Millisecond
	}
	if t.MoveSpeed > 0 {
		out.MoveSpeed = t.MoveSpeed
	}
	if t.RepeatDelayMs > 0 {
		out.RepeatDelay = time.Duration(t.RepeatDelayMs) * time.Millisecond
	}
	if t.RepeatIntervalMs > 0 {
		out.RepeatInterval = time.Duration(t.RepeatIntervalMs) * time.Millisecond
	}
	return out
}

// RectConfig is a normalized rectangle.
type RectConfig struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r RectConfig) rect() layout.Rect {
	return layout.Rect{X: r.X, Y: r.Y, W: r.W, H: r.H}
}

// LayoutConfig is one side's geometry.
type LayoutConfig struct {
	Rows    int            `json:"rows"`
	Cols    int            `json:"cols"`
	Bounds  RectConfig     `json:"bounds"`
	Buttons []ButtonConfig `json:"buttons,omitempty"`
}

// ButtonConfig is a free-floating custom button. Order in the list is
// z-order: later buttons win on overlap.
type ButtonConfig struct {
	Rect    RectConfig    `json:"rect"`
	Layer   int           `json:"layer"`
	Label   string        `json:"label,omitempty"`
	Primary ActionConfig  `json:"primary"`
	Hold    *ActionConfig `json:"hold,omitempty"`
}

// ActionConfig describes a key action in the configuration file.
type ActionConfig struct {
	// Kind is "key", "typing_toggle", "layer_momentary", "layer_toggle" or
	// "none"/empty.
	Kind string `json:"kind"`

	// Key names the key for kind "key", e.g. "A", "Enter", ";".
	Key string `json:"key,omitempty"`

	// Code overrides Key with an explicit virtual-key code.
	Code uint16 `json:"code,omitempty"`

	// Modifiers lists "ctrl", "shift", "alt", "gui".
	Modifiers []string `json:"modifiers,omitempty"`

	// Layer is the target layer for the layer kinds.
	Layer int `json:"layer,omitempty"`

	// Label overrides the auto-derived display label.
	Label string `json:"label,omitempty"`
}

// Action converts to the engine action type.
func (a ActionConfig) Action() (keymap.Action, error) {
	var out keymap.Action
	switch a.Kind {
	case "", "none":
		out = keymap.Action{Kind: keymap.ActionNone}
	case "key":
		code := a.Code
		if code == 0 {
			var ok bool
			code, ok = keymap.CodeForName(a.Key)
			if !ok {
				return out, fmt.Errorf("config: unknown key %q", a.Key)
			}
		}
		var mods uint16
		for _, m := range a.Modifiers {
			switch strings.ToLower(m) {
			case "ctrl", "control":
				mods |= keymap.ModControl
			case "shift":
				mods |= keymap.ModShift
			case "alt", "option":
				mods |= keymap.ModAlt
			case "gui", "cmd", "win":
				mods |= keymap.ModGUI
			default:
				return out, fmt.Errorf("config: unknown modifier %q", m)
			}
		}
		out = keymap.Key(code, mods)
	case "typing_toggle":
		out = keymap.TypingToggle()
	case "layer_momentary":
		out = keymap.Momentary(a.Layer)
	case "layer_toggle":
		out = keymap.Toggle(a.Layer)
	default:
		return out, fmt.Errorf("config: unknown action kind %q", a.Kind)
	}
	if a.Label != "" {
		out.Label = a.Label
	}
	return out, nil
}

// MappingConfig pairs a primary action with an optional hold action.
type MappingConfig struct {
	Primary ActionConfig  `json:"primary"`
	Hold    *ActionConfig `json:"hold,omitempty"`
}

// BuildTable converts the configured keymap into an immutable layered table,
// normalizing per the loader contract (always a complete fallback chain to
// layer 0, layer 1 defaulted from layer 0 when absent).
func (c *Config) BuildTable() (*keymap.Table, error) {
	layers := make(map[int]map[keymap.Position]keymap.Mapping)
	for layerStr, sides := range c.Keymap {
		layer, err := strconv.Atoi(layerStr)
		if err != nil || layer < 0 {
			return nil, fmt.Errorf("config: invalid layer %q", layerStr)
		}
		entries := make(map[keymap.Position]keymap.Mapping)
		for sideStr, cells := range sides {
			side, err := parseSide(sideStr)
			if err != nil {
				return nil, err
			}
			for cellStr, mc := range cells {
				row, col, err := parseCell(cellStr)
				if err != nil {
					return nil, err
				}
				mapping, err := buildMapping(mc)
				if err != nil {
					return nil, err
				}
				entries[keymap.Position{Side: side, Row: row, Col: col}] = mapping
			}
		}
		layers[layer] = entries
	}
	if layers[0] == nil {
		layers[0] = make(map[keymap.Position]keymap.Mapping)
	}
	return keymap.NewTable(layers)
}

// BuildLayout converts one side's configured geometry.
func (c *Config) BuildLayout(side touch.Side) (layout.Layout, error) {
	lc, ok := c.Layouts[side.String()]
	if !ok {
		return layout.Layout{}, fmt.Errorf("config: no layout for side %s", side)
	}
	l := layout.Layout{
		Side: side,
		Grid: layout.GridSpec{Rows: lc.Rows, Cols: lc.Cols, Bounds: lc.Bounds.rect()},
	}
	for _, bc := range lc.Buttons {
		primary, err := bc.Primary.Action()
		if err != nil {
			return layout.Layout{}, err
		}
		b := layout.Button{Rect: bc.Rect.rect(), Layer: bc.Layer, Label: bc.Label, Primary: primary}
		if b.Label == "" {
			b.Label = primary.Label
		}
		if bc.Hold != nil {
			hold, err := bc.Hold.Action()
			if err != nil {
				return layout.Layout{}, err
			}
			b.Hold = &hold
		}
		l.Buttons = append(l.Buttons, b)
	}
	return l, nil
}

func buildMapping(mc MappingConfig) (keymap.Mapping, error) {
	primary, err := mc.Primary.Action()
	if err != nil {
		return keymap.Mapping{}, err
	}
	m := keymap.Mapping{Primary: primary}
	if mc.Hold != nil {
		hold, err := mc.Hold.Action()
		if err != nil {
			return keymap.Mapping{}, err
		}
		m.Hold = &hold
	}
	return m, nil
}

func parseSide(s string) (touch.Side, error) {
	switch s {
	case "left":
		return touch.SideLeft, nil
	case "right":
		return touch.SideRight, nil
	}
	return 0, fmt.Errorf("config: invalid side %q", s)
}

func parseCell(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("config: invalid cell %q", s)
	}
	row, err1 := strconv.Atoi(parts[0])
	col, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || row < 0 || col < 0 {
		return 0, 0, fmt.Errorf("config: invalid cell %q", s)
	}
	return row, col, nil
}

// Manager handles loading and saving configuration.
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a configuration manager rooted at the per-OS user
// config directory.
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return &Manager{configPath: configPath, config: DefaultConfig()}, nil
}

// NewManagerAt creates a manager with an explicit config file path.
func NewManagerAt(path string) *Manager {
	return &Manager{configPath: path, config: DefaultConfig()}
}

func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "padkeys")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "padkeys")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "padkeys")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the config file path.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. A missing file leaves the defaults
// in place.
func (m *Manager) Load() error {
	m.mu.Lock()
	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return err
	}
	m.config = cfg
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged()
	}
	return nil
}

// Save writes the configuration to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set replaces the configuration.
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	onChanged := m.onChanged
	m.mu.Unlock()
	if onChanged != nil {
		onChanged()
	}
}

// RegisterChangeCallback registers a function called whenever the
// configuration is replaced or reloaded.
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
