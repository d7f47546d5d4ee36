// Package model contains domain values passed between layers.
package model

import "time"

// DeviceID identifies one physical keyboard for the lifetime of the process.
// It is constructed once from the device's connection path and reused for all
// registry lookups and event correlation; callers never derive it themselves.
type DeviceID string

// NewDeviceID builds the canonical identifier for a connection path.
func NewDeviceID(path string) DeviceID {
	return DeviceID(path)
}

// DeviceState reflects the monitor's view of a device.
type DeviceState int

const (
	StateConnected DeviceState = iota
	StateDisconnected
	StateError
)

// String returns the state as a short label.
func (s DeviceState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Device describes one enumerated keyboard-class input device.
// Entries are created when first observed in a snapshot and are never removed
// while a contestant binding may still reference them; disconnects only flip
// the state.
type Device struct {
	ID           DeviceID
	Path         string
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	UsagePage    uint16
	Usage        uint16
	State        DeviceState
	LastInput    time.Time
}

// KeyKind classifies a decoded key press.
type KeyKind int

const (
	KindUnknown KeyKind = iota // unmapped scan code; judged as invalid input
	KindRune                   // printable character
	KindBackspace
	KindEnter
)

// Confidence tags how the originating device of an event was identified.
type Confidence int

const (
	// ConfidenceHardware means the event arrived on a true per-device stream.
	ConfidenceHardware Confidence = iota
	// ConfidenceHeuristic means device identity was inferred from timing
	// patterns because per-device streams were unavailable.
	ConfidenceHeuristic
)

// KeyEvent is a decoded key press tagged with its originating device.
// It is consumed exactly once by the judgment engine and never persisted.
type KeyEvent struct {
	Device     DeviceID
	Rune       rune
	Kind       KeyKind
	ScanCode   byte
	Confidence Confidence
	At         time.Time // capture timestamp
}
