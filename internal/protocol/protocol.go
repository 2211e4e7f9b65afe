// Package protocol defines the messages exchanged over the control WebSocket
// and the binary wire format the device bridge uses to stream touch frames.
package protocol

// MessageType labels a WebSocket message.
type MessageType string

const (
	// TypeStatus carries the engine status (per-side intent, contacts,
	// active layer). Pushed by the server on change and on request.
	TypeStatus MessageType = "status"

	// TypeSnapshot notifies consumers that a new touch snapshot revision is
	// available for polling.
	TypeSnapshot MessageType = "snapshot"

	// TypeDebugHit carries a resolved-binding notification, gated by the
	// debug flag.
	TypeDebugHit MessageType = "debug_hit"

	// TypeEditHit carries a raw hit-test result while keymap-editing mode
	// is active.
	TypeEditHit MessageType = "edit_hit"

	// TypeSetLayer requests a persistent layer change.
	TypeSetLayer MessageType = "set_layer"

	// TypeSetTyping requests enabling or disabling typing.
	TypeSetTyping MessageType = "set_typing"

	// TypeSetEditMode toggles keymap-editing mode.
	TypeSetEditMode MessageType = "set_edit_mode"

	// TypePing is an application-level heartbeat.
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// SnapshotPayload is the payload for TypeSnapshot.
type SnapshotPayload struct {
	Revision uint64 `json:"revision"`
}

// SetLayerPayload is the payload for TypeSetLayer.
type SetLayerPayload struct {
	Layer int `json:"layer"`
}

// SetTypingPayload is the payload for TypeSetTyping.
type SetTypingPayload struct {
	Enabled bool `json:"enabled"`
}

// SetEditModePayload is the payload for TypeSetEditMode.
type SetEditModePayload struct {
	Enabled bool `json:"enabled"`
}
