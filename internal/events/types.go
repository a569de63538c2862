package events

import (
	"time"

	"github.com/sweeney/link-indicator/internal/logic"
)

// Event type constants for kelindar/event.
const (
	TypeStatePublished uint32 = iota + 1
	TypePatternStarted
	TypeStorageCleared
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StatePublished is emitted when a producer writes a state into the cell.
type StatePublished struct {
	Source    string
	State     logic.State
	Timestamp time.Time
}

// Type returns the event type identifier for StatePublished.
func (e StatePublished) Type() uint32 { return TypeStatePublished }

// PatternStarted is emitted when the indicator switches to a new pattern.
type PatternStarted struct {
	State     logic.State
	Previous  logic.State
	First     bool // no pattern was rendered before this one
	Timestamp time.Time
}

// Type returns the event type identifier for PatternStarted.
func (e PatternStarted) Type() uint32 { return TypePatternStarted }

// StorageCleared is emitted when the storage-clear routine finishes.
type StorageCleared struct {
	Outcome   string
	Pages     int
	Err       string
	Timestamp time.Time
}

// Type returns the event type identifier for StorageCleared.
func (e StorageCleared) Type() uint32 { return TypeStorageCleared }
