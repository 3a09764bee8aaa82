// Package board provides the shared bulletin board state for corkboard.
//
// # Overview
//
// The board is the single process-wide object that every client connection
// reads and mutates. It owns all notes and pins, enforces the geometric and
// identity invariants, and executes every operation atomically with respect
// to every other operation.
//
// # Core Concepts
//
// Notes are fixed-size rectangles posted at an integer corner with a colour
// and a free-text message. Every note receives a server-assigned id that
// starts at 1, increases monotonically, and is never reused.
//
// Pins are coordinates, not objects. A pin exists on the board at most once
// (placing it twice has no further effect). When a pin is placed it is also
// recorded on every note whose rectangle contains the coordinate at that
// moment. Notes posted afterwards never inherit existing pins.
//
// A shake removes every note that holds no pins. A clear removes everything.
//
// # Concurrency
//
// All state sits behind one sync.RWMutex. Mutations take the write lock and
// queries take the read lock, so no caller ever observes a note whose pin set
// is only partially updated. Queries return copies; callers never receive a
// handle to the stored entities.
//
// # Events
//
// Every successful mutation produces an Event with a sequence number assigned
// under the lock. If a Notifier is configured it is invoked before the lock is
// released, so events are delivered in Seq order. Notifiers must hand events
// off without blocking and must not call back into the board.
//
// # Usage Example
//
//	b, err := board.New(board.Config{
//		Width:      200,
//		Height:     100,
//		NoteWidth:  20,
//		NoteHeight: 10,
//		Colours:    []string{"red", "white"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	id, err := b.PostNote(0, 0, "red", "hello")
//	if errors.Is(err, board.ErrOverlap) {
//		// a note already sits at (0, 0)
//	}
//
//	_ = b.PlacePin(5, 5)
//	notes := b.QueryNotes(board.Query{Colour: "red"})
package board
