package log

import (
	"time"
)

// Event is one trace record. CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the open session (UUID). Empty for device events.
	SessionID string `cbor:"2,keyasint,omitempty"`

	// Device is the index of the device the event belongs to.
	Device uint32 `cbor:"3,keyasint"`

	// Minor is the device path of the minor the session was opened on.
	Minor string `cbor:"4,keyasint,omitempty"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Type-specific payload (one of these will be set).
	Ioctl       *IoctlEvent       `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Snapshot    *SnapshotEvent    `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryIoctl indicates a control command.
	CategoryIoctl Category = 0
	// CategorySnapshot indicates a registry snapshot.
	CategorySnapshot Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryIoctl:
		return "IOCTL"
	case CategorySnapshot:
		return "SNAPSHOT"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Phase tells which half of the two-phase query a command ran.
type Phase uint8

const (
	// PhaseSingle is a command without a probe/fill distinction.
	PhaseSingle Phase = 0
	// PhaseProbe is a query with every array pointer zero.
	PhaseProbe Phase = 1
	// PhaseFill is a query that copies arrays out.
	PhaseFill Phase = 2
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseSingle:
		return "SINGLE"
	case PhaseProbe:
		return "PROBE"
	case PhaseFill:
		return "FILL"
	default:
		return "UNKNOWN"
	}
}

// IoctlEvent captures one control command.
type IoctlEvent struct {
	// Command is the full ioctl code.
	Command uint32 `cbor:"1,keyasint"`

	// Name is the symbolic command name, e.g. "MODE_GETRESOURCES".
	Name string `cbor:"2,keyasint"`

	// Phase is the query phase, for two-phase commands.
	Phase Phase `cbor:"3,keyasint"`

	// Errno is the error number returned, 0 on success.
	Errno uint32 `cbor:"4,keyasint,omitempty"`

	// Duration is the time spent in the command. Stored as nanoseconds.
	Duration time.Duration `cbor:"5,keyasint"`

	// Object is the primary object id or buffer handle the command targeted.
	Object uint32 `cbor:"6,keyasint,omitempty"`
}

// Failed reports whether the command returned an error.
func (e *IoctlEvent) Failed() bool {
	return e.Errno != 0
}

// StateChangeEvent captures session and device lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntitySession indicates a session state change.
	StateEntitySession StateEntity = 0
	// StateEntityDevice indicates a device state change.
	StateEntityDevice StateEntity = 1
	// StateEntityBuffer indicates a buffer object state change.
	StateEntityBuffer StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySession:
		return "SESSION"
	case StateEntityDevice:
		return "DEVICE"
	case StateEntityBuffer:
		return "BUFFER"
	default:
		return "UNKNOWN"
	}
}

// SnapshotEvent carries a CBOR-encoded registry snapshot.
type SnapshotEvent struct {
	// Reason says what triggered the snapshot.
	Reason string `cbor:"1,keyasint,omitempty"`

	// Data is the encoded snapshot.
	Data []byte `cbor:"2,keyasint"`
}

// ErrorEventData captures errors outside a single command.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Code is the errno (if applicable).
	Code *int `cbor:"2,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
