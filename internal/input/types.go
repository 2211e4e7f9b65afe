// Package input is the OS-level synthesis boundary: it turns resolved actions
// into real keyboard and pointer events on the host system.
package input

// Injector synthesizes input events. Implementations are platform-specific;
// key codes use the Windows virtual-key numbering and are translated to the
// native code space by each injector.
type Injector interface {
	// KeyDown and KeyUp synthesize one key edge each. Modifier flags are
	// pressed before the key and released after it as needed.
	KeyDown(keyCode uint16, modifiers uint16) error
	KeyUp(keyCode uint16, modifiers uint16) error

	// PointerMove moves the cursor by a relative pixel delta.
	PointerMove(dx, dy int) error

	// PointerButton presses or releases a pointer button
	// (1=left, 2=right, 3=middle).
	PointerButton(button int, pressed bool) error

	// Close releases any OS resources held by the injector.
	Close() error
}

// Modifier flag bits, mirrored from the keymap package to keep this package
// free of engine dependencies.
const (
	ModControl uint16 = 1 << 0
	ModShift   uint16 = 1 << 1
	ModAlt     uint16 = 1 << 2
	ModGUI     uint16 = 1 << 3
)
