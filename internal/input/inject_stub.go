//go:build !linux && !darwin

package input

import "fmt"

// Stub injector for platforms without a native backend.

type stubInjector struct{}

func NewInjector() (Injector, error) {
	return &stubInjector{}, nil
}

func (i *stubInjector) KeyDown(keyCode uint16, modifiers uint16) error {
	return fmt.Errorf("input: injection not supported on this platform")
}

func (i *stubInjector) KeyUp(keyCode uint16, modifiers uint16) error {
	return fmt.Errorf("input: injection not supported on this platform")
}

func (i *stubInjector) PointerMove(dx, dy int) error {
	return fmt.Errorf("input: injection not supported on this platform")
}

func (i *stubInjector) PointerButton(button int, pressed bool) error {
	return fmt.Errorf("input: injection not supported on this platform")
}

func (i *stubInjector) Close() error {
	return nil
}
