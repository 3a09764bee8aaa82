package board

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the board mutation an Event describes.
type EventType string

const (
	// EventNotePosted is emitted after a note is stored
	EventNotePosted EventType = "note_posted"

	// EventPinPlaced is emitted when a new pin is added to the board.
	// Placing an already-present pin is a no-op and emits nothing.
	EventPinPlaced EventType = "pin_placed"

	// EventPinRemoved is emitted when a pin is removed from the board
	EventPinRemoved EventType = "pin_removed"

	// EventBoardShaken is emitted after a shake, listing the removed note ids
	EventBoardShaken EventType = "board_shaken"

	// EventBoardCleared is emitted after a clear, listing the removed note ids
	EventBoardCleared EventType = "board_cleared"
)

// Validate checks if the EventType is a valid enum value.
func (t EventType) Validate() error {
	switch t {
	case EventNotePosted, EventPinPlaced, EventPinRemoved, EventBoardShaken, EventBoardCleared:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", t)
	}
}

// Event describes one successful board mutation.
type Event struct {
	ID      string    `json:"id"`                 // UUID
	Seq     uint64    `json:"seq"`                // Assigned under the board lock, strictly increasing
	Type    EventType `json:"type"`               // Mutation kind
	NoteID  int       `json:"note_id,omitempty"`  // note_posted
	X       int       `json:"x"`                  // Note corner or pin coordinate
	Y       int       `json:"y"`                  // Note corner or pin coordinate
	Colour  string    `json:"colour,omitempty"`   // note_posted
	Message string    `json:"message,omitempty"`  // note_posted
	NoteIDs []int     `json:"note_ids,omitempty"` // Notes gaining or losing the pin
	Removed []int     `json:"removed,omitempty"`  // Notes deleted by shake or clear
	AtMs    int64     `json:"at_ms"`              // Unix timestamp in milliseconds
}

// Validate checks if the Event has valid field values.
func (e *Event) Validate() error {
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("invalid event ID: not a valid UUID")
	}
	if e.Seq == 0 {
		return fmt.Errorf("invalid sequence: must be >= 1")
	}
	if err := e.Type.Validate(); err != nil {
		return fmt.Errorf("invalid event type: %w", err)
	}
	return nil
}

// Notifier receives board events. It is called with the board write lock
// held, from the goroutine that performed the mutation, so events arrive in
// Seq order. It must not block and must not call back into the board.
type Notifier func(Event)

func newEvent(seq uint64, t EventType) Event {
	return Event{
		ID:   uuid.New().String(),
		Seq:  seq,
		Type: t,
		AtMs: time.Now().UnixMilli(),
	}
}
