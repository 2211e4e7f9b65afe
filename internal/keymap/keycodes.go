package keymap

import (
	"fmt"
	"strings"
)

// Key codes follow the Windows virtual-key numbering, which is what the
// injectors translate from. Letters and digits use their ASCII uppercase
// values ('A' = 0x41, '0' = 0x30).
const (
	CodeBackspace uint16 = 0x08
	CodeTab       uint16 = 0x09
	CodeEnter     uint16 = 0x0D
	CodeShift     uint16 = 0x10
	CodeControl   uint16 = 0x11
	CodeAlt       uint16 = 0x12
	CodeCapsLock  uint16 = 0x14
	CodeEscape    uint16 = 0x1B
	CodeSpace     uint16 = 0x20
	CodePageUp    uint16 = 0x21
	CodePageDown  uint16 = 0x22
	CodeEnd       uint16 = 0x23
	CodeHome      uint16 = 0x24
	CodeLeft      uint16 = 0x25
	CodeUp        uint16 = 0x26
	CodeRight     uint16 = 0x27
	CodeDown      uint16 = 0x28
	CodeDelete    uint16 = 0x2E
	CodeGUI       uint16 = 0x5B

	CodeSemicolon uint16 = 0xBA
	CodeEquals    uint16 = 0xBB
	CodeComma     uint16 = 0xBC
	CodeMinus     uint16 = 0xBD
	CodePeriod    uint16 = 0xBE
	CodeSlash     uint16 = 0xBF
	CodeBacktick  uint16 = 0xC0
	CodeLBracket  uint16 = 0xDB
	CodeBackslash uint16 = 0xDC
	CodeRBracket  uint16 = 0xDD
	CodeQuote     uint16 = 0xDE
)

// Modifier flag bits carried alongside a key code.
const (
	ModControl uint16 = 1 << 0
	ModShift   uint16 = 1 << 1
	ModAlt     uint16 = 1 << 2
	ModGUI     uint16 = 1 << 3
)

// CodeForChar returns the key code for a letter or digit.
func CodeForChar(r rune) (uint16, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return uint16(r - 'a' + 'A'), true
	case r >= 'A' && r <= 'Z':
		return uint16(r), true
	case r >= '0' && r <= '9':
		return uint16(r), true
	}
	return 0, false
}

var codeNames = map[uint16]string{
	CodeBackspace: "Backspace",
	CodeTab:       "Tab",
	CodeEnter:     "Enter",
	CodeShift:     "Shift",
	CodeControl:   "Ctrl",
	CodeAlt:       "Alt",
	CodeCapsLock:  "CapsLock",
	CodeEscape:    "Esc",
	CodeSpace:     "Space",
	CodePageUp:    "PgUp",
	CodePageDown:  "PgDn",
	CodeEnd:       "End",
	CodeHome:      "Home",
	CodeLeft:      "Left",
	CodeUp:        "Up",
	CodeRight:     "Right",
	CodeDown:      "Down",
	CodeDelete:    "Del",
	CodeGUI:       "GUI",
	CodeSemicolon: ";",
	CodeEquals:    "=",
	CodeComma:     ",",
	CodeMinus:     "-",
	CodePeriod:    ".",
	CodeSlash:     "/",
	CodeBacktick:  "`",
	CodeLBracket:  "[",
	CodeBackslash: "\\",
	CodeRBracket:  "]",
	CodeQuote:     "'",
}

// CodeForName resolves a key name as used in configuration files: either a
// single letter/digit or one of the named keys ("Enter", "Space", ...).
// Matching on names is case-insensitive.
func CodeForName(name string) (uint16, bool) {
	if len(name) == 1 {
		if code, ok := CodeForChar(rune(name[0])); ok {
			return code, true
		}
	}
	for code, n := range codeNames {
		if strings.EqualFold(n, name) {
			return code, true
		}
	}
	return 0, false
}

// ModifierNames expands a modifier bitmask into its short names.
func ModifierNames(mods uint16) []string {
	var names []string
	if mods&ModControl != 0 {
		names = append(names, "Ctrl")
	}
	if mods&ModShift != 0 {
		names = append(names, "Shift")
	}
	if mods&ModAlt != 0 {
		names = append(names, "Alt")
	}
	if mods&ModGUI != 0 {
		names = append(names, "GUI")
	}
	return names
}

// CodeLabel returns a short printable name for a key code.
func CodeLabel(code uint16) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	if (code >= 'A' && code <= 'Z') || (code >= '0' && code <= '9') {
		return string(rune(code))
	}
	return fmt.Sprintf("0x%02X", code)
}
