//go:build darwin

package input

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <ApplicationServices/ApplicationServices.h>

static CGPoint currentMousePosition() {
    CGEventRef event = CGEventCreate(NULL);
    CGPoint cursor = CGEventGetLocation(event);
    CFRelease(event);
    return cursor;
}

static void injectPointerMove(CGFloat dx, CGFloat dy) {
    CGPoint pos = currentMousePosition();
    CGPoint next = CGPointMake(pos.x + dx, pos.y + dy);
    CGEventRef event = CGEventCreateMouseEvent(NULL, kCGEventMouseMoved, next, kCGMouseButtonLeft);
    CGEventPost(kCGSessionEventTap, event);
    CFRelease(event);
}

static void injectPointerButton(int button, bool pressed) {
    CGMouseButton cgButton;
    CGEventType eventType;

    switch (button) {
        case 1: cgButton = kCGMouseButtonLeft; break;
        case 2: cgButton = kCGMouseButtonRight; break;
        case 3: cgButton = kCGMouseButtonCenter; break;
        default: return;
    }
    if (pressed) {
        switch (button) {
            case 1: eventType = kCGEventLeftMouseDown; break;
            case 2: eventType = kCGEventRightMouseDown; break;
            default: eventType = kCGEventOtherMouseDown; break;
        }
    } else {
        switch (button) {
            case 1: eventType = kCGEventLeftMouseUp; break;
            case 2: eventType = kCGEventRightMouseUp; break;
            default: eventType = kCGEventOtherMouseUp; break;
        }
    }

    CGPoint pos = currentMousePosition();
    CGEventRef event = CGEventCreateMouseEvent(NULL, eventType, pos, cgButton);
    CGEventPost(kCGSessionEventTap, event);
    CFRelease(event);
}

static void injectKey(CGKeyCode keyCode, bool pressed, uint64_t flags) {
    CGEventRef event = CGEventCreateKeyboardEvent(NULL, keyCode, pressed);
    if (flags != 0) {
        CGEventSetFlags(event, (CGEventFlags)flags);
    }
    CGEventPost(kCGSessionEventTap, event);
    CFRelease(event);
}
*/
import "C"
import (
	"fmt"
)

// macOS injection uses CoreGraphics session-tap events. Key codes are
// translated from the Windows virtual-key space to CGKeyCodes; modifiers map
// to CGEventFlags rather than separate key edges.

var vkToMacKey = map[uint16]uint16{
	// Letters (VK_A = 0x41, kVK_ANSI_A = 0x00)
	0x41: 0x00, 0x42: 0x0B, 0x43: 0x08, 0x44: 0x02, 0x45: 0x0E,
	0x46: 0x03, 0x47: 0x05, 0x48: 0x04, 0x49: 0x22, 0x4A: 0x26,
	0x4B: 0x28, 0x4C: 0x25, 0x4D: 0x2E, 0x4E: 0x2D, 0x4F: 0x1F,
	0x50: 0x23, 0x51: 0x0C, 0x52: 0x0F, 0x53: 0x01, 0x54: 0x11,
	0x55: 0x20, 0x56: 0x09, 0x57: 0x0D, 0x58: 0x07, 0x59: 0x10,
	0x5A: 0x06,

	// Digits
	0x30: 0x1D, 0x31: 0x12, 0x32: 0x13, 0x33: 0x14, 0x34: 0x15,
	0x35: 0x17, 0x36: 0x16, 0x37: 0x1A, 0x38: 0x1C, 0x39: 0x19,

	// Control and navigation
	0x08: 0x33, 0x09: 0x30, 0x0D: 0x24, 0x10: 0x38, 0x11: 0x3B,
	0x12: 0x3A, 0x14: 0x39, 0x1B: 0x35, 0x20: 0x31,
	0x21: 0x74, 0x22: 0x79, 0x23: 0x77, 0x24: 0x73,
	0x25: 0x7B, 0x26: 0x7E, 0x27: 0x7C, 0x28: 0x7D,
	0x2E: 0x75, 0x5B: 0x37,

	// Punctuation
	0xBA: 0x29, 0xBB: 0x18, 0xBC: 0x2B, 0xBD: 0x1B, 0xBE: 0x2F,
	0xBF: 0x2C, 0xC0: 0x32, 0xDB: 0x21, 0xDC: 0x2A, 0xDD: 0x1E,
	0xDE: 0x27,
}

const (
	cgFlagShift   = 0x00020000
	cgFlagControl = 0x00040000
	cgFlagAlt     = 0x00080000
	cgFlagCommand = 0x00100000
)

// cgInjector is the macOS CoreGraphics-backed event synthesizer.
type cgInjector struct{}

// NewInjector creates a macOS injector. Requires accessibility permission.
func NewInjector() (Injector, error) {
	return &cgInjector{}, nil
}

// KeyDown synthesizes a key press with modifier flags applied.
func (i *cgInjector) KeyDown(keyCode uint16, modifiers uint16) error {
	return i.injectKey(keyCode, modifiers, true)
}

// KeyUp synthesizes the matching key release.
func (i *cgInjector) KeyUp(keyCode uint16, modifiers uint16) error {
	return i.injectKey(keyCode, modifiers, false)
}

func (i *cgInjector) injectKey(keyCode uint16, modifiers uint16, pressed bool) error {
	macCode, ok := vkToMacKey[keyCode]
	if !ok {
		return fmt.Errorf("input: unmapped key code 0x%02X", keyCode)
	}
	var flags uint64
	if modifiers&ModShift != 0 {
		flags |= cgFlagShift
	}
	if modifiers&ModControl != 0 {
		flags |= cgFlagControl
	}
	if modifiers&ModAlt != 0 {
		flags |= cgFlagAlt
	}
	if modifiers&ModGUI != 0 {
		flags |= cgFlagCommand
	}
	C.injectKey(C.CGKeyCode(macCode), C.bool(pressed), C.uint64_t(flags))
	return nil
}

// PointerMove moves the cursor by a relative pixel delta.
func (i *cgInjector) PointerMove(dx, dy int) error {
	C.injectPointerMove(C.CGFloat(dx), C.CGFloat(dy))
	return nil
}

// PointerButton presses or releases a pointer button.
func (i *cgInjector) PointerButton(button int, pressed bool) error {
	if button < 1 || button > 3 {
		return fmt.Errorf("input: invalid button %d", button)
	}
	C.injectPointerButton(C.int(button), C.bool(pressed))
	return nil
}

// Close is a no-op on macOS.
func (i *cgInjector) Close() error {
	return nil
}
