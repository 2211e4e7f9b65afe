// Package tray puts the engine in the system tray: a typing toggle, the
// active-layer indicator and daemon controls, built on getlantern/systray.
package tray

import (
	"github.com/getlantern/systray"
)

type menuItem struct {
	title    string
	callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu. Items are declared before Run;
// systray only supports building the menu once.
type Tray struct {
	tooltip string
	items   []*menuItem
	quitCh  chan struct{}
}

// New creates a tray with the given tooltip.
func New(tooltip string) *Tray {
	return &Tray{
		tooltip: tooltip,
		quitCh:  make(chan struct{}),
	}
}

// AddMenuItem declares a menu item and returns its id for later updates.
func (t *Tray) AddMenuItem(title string, callback func()) int {
	t.items = append(t.items, &menuItem{title: title, callback: callback})
	return len(t.items) - 1
}

// AddSeparator declares a separator.
func (t *Tray) AddSeparator() {
	t.items = append(t.items, nil)
}

// SetItemChecked sets the checked state of a menu item.
func (t *Tray) SetItemChecked(id int, checked bool) {
	mi := t.lookup(id)
	if mi == nil || mi.item == nil {
		return
	}
	if checked {
		mi.item.Check()
	} else {
		mi.item.Uncheck()
	}
}

// SetItemTitle updates a menu item's title, e.g. the layer indicator.
func (t *Tray) SetItemTitle(id int, title string) {
	mi := t.lookup(id)
	if mi == nil {
		return
	}
	mi.title = title
	if mi.item != nil {
		mi.item.SetTitle(title)
	}
}

func (t *Tray) lookup(id int) *menuItem {
	if id < 0 || id >= len(t.items) {
		return nil
	}
	return t.items[id]
}

// Run starts the tray event loop. Blocks until Stop; on macOS this must be
// the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.setup, func() { close(t.quitCh) })
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

func (t *Tray) setup() {
	systray.SetTitle("PadKeys")
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(trayIcon())

	for _, mi := range t.items {
		if mi == nil {
			systray.AddSeparator()
			continue
		}
		mi.item = systray.AddMenuItem(mi.title, "")
		if mi.callback == nil {
			continue
		}
		go func(mi *menuItem) {
			for {
				select {
				case <-mi.item.ClickedCh:
					mi.callback()
				case <-t.quitCh:
					return
				}
			}
		}(mi)
	}
}

// trayIcon returns a minimal valid 16x16 32-bit ICO. All pixels transparent;
// platforms that show the title instead of the icon render "PadKeys".
func trayIcon() []byte {
	icon := make([]byte, 1118)
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00, // 1024 px + 40 header + 32 mask
		0x16, 0x00, 0x00, 0x00, // offset
	})
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00, // DIB header size
		0x10, 0x00, 0x00, 0x00, // width
		0x20, 0x00, 0x00, 0x00, // height, doubled for the mask
		0x01, 0x00, // planes
		0x20, 0x00, // bpp
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x04, 0x00, 0x00, // image size
	})
	return icon
}
