// Package hotkey matches chords against the stream of keys the engine itself
// synthesizes. It backs the emergency escape chord: when a misconfigured
// keymap makes the trackpads unusable, the engine is still the thing emitting
// keys, so matching its own output needs no OS-level hook.
package hotkey

import (
	"log"
	"strings"
	"sync"
)

// chord is a set of key labels that must all be held at once. Labels are
// stored upper-cased; matching is case-insensitive.
type chord struct {
	name  string
	parts map[string]struct{}
	fire  func()
}

func (c *chord) satisfiedBy(down map[string]struct{}) bool {
	for p := range c.parts {
		if _, held := down[p]; !held {
			return false
		}
	}
	return true
}

// Manager tracks held keys and fires chord callbacks. Feed it from the
// dispatcher's key-state hook.
type Manager struct {
	mu     sync.Mutex
	chords []*chord
	down   map[string]struct{}
}

// NewManager creates an empty chord manager.
func NewManager() *Manager {
	return &Manager{down: make(map[string]struct{})}
}

// Register adds a chord such as "Ctrl+Alt+Shift+Esc". An empty string
// registers nothing.
func (m *Manager) Register(combo string, fire func()) {
	if combo == "" {
		return
	}
	parts := make(map[string]struct{})
	for _, p := range strings.Split(combo, "+") {
		parts[strings.ToUpper(strings.TrimSpace(p))] = struct{}{}
	}

	m.mu.Lock()
	m.chords = append(m.chords, &chord{name: combo, parts: parts, fire: fire})
	m.mu.Unlock()
}

// Clear removes every registered chord.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.chords = nil
	m.mu.Unlock()
}

// Reset drops all held-key state, e.g. after a device disconnect.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.down = make(map[string]struct{})
	m.mu.Unlock()
}

// UpdateState records one key edge by label. Chords are checked on the down
// edge only, so a chord re-arms once any part is released and pressed again.
func (m *Manager) UpdateState(key string, isDown bool) {
	label := strings.ToUpper(key)

	m.mu.Lock()
	if isDown {
		m.down[label] = struct{}{}
	} else {
		delete(m.down, label)
	}
	var fired []*chord
	if isDown {
		for _, c := range m.chords {
			if c.satisfiedBy(m.down) {
				fired = append(fired, c)
			}
		}
	}
	m.mu.Unlock()

	for _, c := range fired {
		log.Printf("Hotkey: chord triggered: %s", c.name)
		go c.fire()
	}
}
