package config

// DefaultConfig returns a working two-pad configuration: a 3x5 letter grid
// per side with a bottom row of control keys, thumb buttons below the grid,
// and a number/navigation overlay on layer 1.
func DefaultConfig() *Config {
	cfg := &Config{
		General: GeneralConfig{
			TypingEnabled: true,
			MouseTakeover: true,
			TapClick:      true,
			Haptics:       true,
			APIEnabled:    true,
			APIPort:       18320,
			FramePort:     18321,
			PointerScale:  900,
			EscapeChord:   "Ctrl+Alt+Shift+Esc",
		},
		Thresholds: ThresholdsConfig{
			HoldMs:             250,
			DragCancelDistance: 0.035,
			TapClickMs:         180,
			MoveSpeed:          0.05,
			RepeatDelayMs:      400,
			RepeatIntervalMs:   60,
		},
		Layouts: map[string]LayoutConfig{
			"left": {
				Rows:   4,
				Cols:   5,
				Bounds: RectConfig{X: 0, Y: 0, W: 1, H: 0.8},
				Buttons: []ButtonConfig{
					{
						Rect:    RectConfig{X: 0.1, Y: 0.82, W: 0.8, H: 0.18},
						Label:   "Space",
						Primary: ActionConfig{Kind: "key", Key: "Space"},
						Hold:    &ActionConfig{Kind: "layer_momentary", Layer: 1},
					},
				},
			},
			"right": {
				Rows:   4,
				Cols:   5,
				Bounds: RectConfig{X: 0, Y: 0, W: 1, H: 0.8},
				Buttons: []ButtonConfig{
					{
						Rect:    RectConfig{X: 0.1, Y: 0.82, W: 0.5, H: 0.18},
						Label:   "Enter",
						Primary: ActionConfig{Kind: "key", Key: "Enter"},
					},
					{
						Rect:    RectConfig{X: 0.65, Y: 0.82, W: 0.25, H: 0.18},
						Primary: ActionConfig{Kind: "typing_toggle"},
					},
				},
			},
		},
		Keymap: map[string]map[string]map[string]MappingConfig{
			"0": {
				"left": {
					"0:0": key("Q"), "0:1": key("W"), "0:2": key("E"), "0:3": key("R"), "0:4": key("T"),
					"1:0": key("A"), "1:1": key("S"), "1:2": key("D"), "1:3": key("F"), "1:4": key("G"),
					"2:0": key("Z"), "2:1": key("X"), "2:2": key("C"), "2:3": key("V"), "2:4": key("B"),
					// Holding Esc emits the full escape chord on one action;
					// a single press is the only way to get all chord parts
					// down at once, since each side holds at most one key.
					"3:0": {
						Primary: ActionConfig{Kind: "key", Key: "Esc"},
						Hold:    &ActionConfig{Kind: "key", Key: "Esc", Modifiers: []string{"ctrl", "alt", "shift"}},
					},
					"3:1": key("Tab"),
					"3:2": holdKey("`", "Ctrl"),
					"3:3": holdKey("-", "Alt"),
					"3:4": holdKey("=", "GUI"),
				},
				"right": {
					"0:0": key("Y"), "0:1": key("U"), "0:2": key("I"), "0:3": key("O"), "0:4": key("P"),
					"1:0": key("H"), "1:1": key("J"), "1:2": key("K"), "1:3": key("L"), "1:4": key(";"),
					"2:0": key("N"), "2:1": key("M"), "2:2": key(","), "2:3": key("."), "2:4": key("/"),
					"3:0": key("Backspace"),
					"3:1": holdKey("'", "Shift"),
					"3:2": key("["),
					"3:3": key("]"),
					"3:4": {Primary: ActionConfig{Kind: "layer_toggle", Layer: 1}},
				},
			},
			"1": {
				"left": {
					"0:0": key("1"), "0:1": key("2"), "0:2": key("3"), "0:3": key("4"), "0:4": key("5"),
				},
				"right": {
					"0:0": key("6"), "0:1": key("7"), "0:2": key("8"), "0:3": key("9"), "0:4": key("0"),
					"1:0": key("Left"), "1:1": key("Down"), "1:2": key("Up"), "1:3": key("Right"), "1:4": key("Del"),
					"2:0": key("Home"), "2:1": key("PgDn"), "2:2": key("PgUp"), "2:3": key("End"),
				},
			},
		},
	}
	return cfg
}

func key(name string) MappingConfig {
	return MappingConfig{Primary: ActionConfig{Kind: "key", Key: name}}
}

// holdKey maps a tap to the named key and a sustained press to a held
// modifier.
func holdKey(name, modifier string) MappingConfig {
	return MappingConfig{
		Primary: ActionConfig{Kind: "key", Key: name},
		Hold:    &ActionConfig{Kind: "key", Key: modifier},
	}
}
