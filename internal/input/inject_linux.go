//go:build linux

package input

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux injection goes through /dev/uinput: the injector registers a virtual
// keyboard+mouse device and writes evdev events to it. No cgo required.

const (
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetRelBit  = 0x40045566

	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	synReport = 0
	relX      = 0x00
	relY      = 0x01

	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112

	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyLeftAlt   = 56
	keyLeftMeta  = 125

	uinputMaxNameSize = 80
	absSize           = 64
)

// uinputUserDev mirrors struct uinput_user_dev from linux/uinput.h.
type uinputUserDev struct {
	Name       [uinputMaxNameSize]byte
	ID         struct{ Bustype, Vendor, Product, Version uint16 }
	EffectsMax uint32
	AbsMax     [absSize]int32
	AbsMin     [absSize]int32
	AbsFuzz    [absSize]int32
	AbsFlat    [absSize]int32
}

// inputEvent mirrors struct input_event for 64-bit platforms.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// vkToEvdev translates Windows virtual-key codes to evdev KEY_* codes.
var vkToEvdev = map[uint16]uint16{
	// Letters
	0x41: 30, 0x42: 48, 0x43: 46, 0x44: 32, 0x45: 18, 0x46: 33,
	0x47: 34, 0x48: 35, 0x49: 23, 0x4A: 36, 0x4B: 37, 0x4C: 38,
	0x4D: 50, 0x4E: 49, 0x4F: 24, 0x50: 25, 0x51: 16, 0x52: 19,
	0x53: 31, 0x54: 20, 0x55: 22, 0x56: 47, 0x57: 17, 0x58: 45,
	0x59: 21, 0x5A: 44,

	// Digits 1-9, 0
	0x31: 2, 0x32: 3, 0x33: 4, 0x34: 5, 0x35: 6,
	0x36: 7, 0x37: 8, 0x38: 9, 0x39: 10, 0x30: 11,

	// Control and navigation
	0x08: 14, 0x09: 15, 0x0D: 28, 0x10: keyLeftShift, 0x11: keyLeftCtrl,
	0x12: keyLeftAlt, 0x14: 58, 0x1B: 1, 0x20: 57,
	0x21: 104, 0x22: 109, 0x23: 107, 0x24: 102,
	0x25: 105, 0x26: 103, 0x27: 106, 0x28: 108,
	0x2E: 111, 0x5B: keyLeftMeta,

	// Punctuation
	0xBA: 39, 0xBB: 13, 0xBC: 51, 0xBD: 12, 0xBE: 52, 0xBF: 53,
	0xC0: 41, 0xDB: 26, 0xDC: 43, 0xDD: 27, 0xDE: 40,
}

// uinputInjector is the Linux uinput-backed event synthesizer.
type uinputInjector struct {
	fd int
}

// NewInjector registers a virtual input device. Requires write access to
// /dev/uinput (typically the input group or root).
func NewInjector() (Injector, error) {
	fd, err := unix.Open("/dev/uinput", unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("input: open /dev/uinput: %w", err)
	}

	inj := &uinputInjector{fd: fd}
	if err := inj.setup(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return inj, nil
}

func (i *uinputInjector) setup() error {
	for _, ev := range []int{evKey, evRel, evSyn} {
		if err := ioctl(i.fd, uiSetEvBit, uintptr(ev)); err != nil {
			return fmt.Errorf("input: set event bit %d: %w", ev, err)
		}
	}
	for _, code := range vkToEvdev {
		if err := ioctl(i.fd, uiSetKeyBit, uintptr(code)); err != nil {
			return fmt.Errorf("input: set key bit %d: %w", code, err)
		}
	}
	for _, btn := range []int{btnLeft, btnRight, btnMiddle} {
		if err := ioctl(i.fd, uiSetKeyBit, uintptr(btn)); err != nil {
			return fmt.Errorf("input: set button bit %d: %w", btn, err)
		}
	}
	for _, axis := range []int{relX, relY} {
		if err := ioctl(i.fd, uiSetRelBit, uintptr(axis)); err != nil {
			return fmt.Errorf("input: set rel bit %d: %w", axis, err)
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:], "padkeys virtual input")
	dev.ID.Bustype = 0x03 // USB
	dev.ID.Vendor = 0x1d6b
	dev.ID.Product = 0x0135
	dev.ID.Version = 1

	buf := (*[unsafe.Sizeof(dev)]byte)(unsafe.Pointer(&dev))[:]
	if _, err := unix.Write(i.fd, buf); err != nil {
		return fmt.Errorf("input: write device descriptor: %w", err)
	}
	if err := ioctl(i.fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("input: create device: %w", err)
	}
	return nil
}

// KeyDown synthesizes modifier and key press edges.
func (i *uinputInjector) KeyDown(keyCode uint16, modifiers uint16) error {
	for _, m := range modifierKeys(modifiers) {
		if err := i.emitKey(m, 1); err != nil {
			return err
		}
	}
	code, ok := vkToEvdev[keyCode]
	if !ok {
		return fmt.Errorf("input: unmapped key code 0x%02X", keyCode)
	}
	return i.emitKey(code, 1)
}

// KeyUp synthesizes the key release followed by its modifier releases.
func (i *uinputInjector) KeyUp(keyCode uint16, modifiers uint16) error {
	code, ok := vkToEvdev[keyCode]
	if !ok {
		return fmt.Errorf("input: unmapped key code 0x%02X", keyCode)
	}
	if err := i.emitKey(code, 0); err != nil {
		return err
	}
	for _, m := range modifierKeys(modifiers) {
		if err := i.emitKey(m, 0); err != nil {
			return err
		}
	}
	return nil
}

// PointerMove moves the cursor by a relative pixel delta.
func (i *uinputInjector) PointerMove(dx, dy int) error {
	if err := i.emit(evRel, relX, int32(dx)); err != nil {
		return err
	}
	if err := i.emit(evRel, relY, int32(dy)); err != nil {
		return err
	}
	return i.emit(evSyn, synReport, 0)
}

// PointerButton presses or releases a pointer button.
func (i *uinputInjector) PointerButton(button int, pressed bool) error {
	var code uint16
	switch button {
	case 1:
		code = btnLeft
	case 2:
		code = btnRight
	case 3:
		code = btnMiddle
	default:
		return fmt.Errorf("input: invalid button %d", button)
	}
	value := int32(0)
	if pressed {
		value = 1
	}
	return i.emitKey(code, value)
}

// Close destroys the virtual device.
func (i *uinputInjector) Close() error {
	ioctl(i.fd, uiDevDestroy, 0)
	return unix.Close(i.fd)
}

func (i *uinputInjector) emitKey(code uint16, value int32) error {
	if err := i.emit(evKey, code, value); err != nil {
		return err
	}
	return i.emit(evSyn, synReport, 0)
}

func (i *uinputInjector) emit(evType, code uint16, value int32) error {
	ev := inputEvent{Type: evType, Code: code, Value: value}
	buf := (*[unsafe.Sizeof(ev)]byte)(unsafe.Pointer(&ev))[:]
	if _, err := unix.Write(i.fd, buf); err != nil {
		return fmt.Errorf("input: write event: %w", err)
	}
	return nil
}

func modifierKeys(modifiers uint16) []uint16 {
	var keys []uint16
	if modifiers&ModControl != 0 {
		keys = append(keys, keyLeftCtrl)
	}
	if modifiers&ModShift != 0 {
		keys = append(keys, keyLeftShift)
	}
	if modifiers&ModAlt != 0 {
		keys = append(keys, keyLeftAlt)
	}
	if modifiers&ModGUI != 0 {
		keys = append(keys, keyLeftMeta)
	}
	return keys
}

func ioctl(fd int, req uint, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), arg)
	if errno != 0 {
		return os.NewSyscallError("ioctl", errno)
	}
	return nil
}
