package board

import (
	"fmt"
	"sync"
)

// Board is the shared bulletin board. It is safe for concurrent use; every
// exported method executes as a single critical section.
type Board struct {
	cfg     Config
	colours map[string]bool

	mu      sync.RWMutex
	notes   []*Note       // ascending id order
	corners map[Pin]*Note // upper-left corner -> note, for the overlap check
	pins    map[Pin]struct{}
	nextID  int
	seq     uint64

	notify Notifier
}

// Option configures a Board.
type Option func(*Board)

// WithNotifier registers fn to receive an Event after every successful mutation.
func WithNotifier(fn Notifier) Option {
	return func(b *Board) {
		b.notify = fn
	}
}

// New creates an empty board. Duplicate colours are collapsed, keeping the
// first occurrence.
func New(cfg Config, opts ...Option) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid board config: %w", err)
	}

	cfg.Colours = cfg.normalizedColours()
	colours := make(map[string]bool, len(cfg.Colours))
	for _, c := range cfg.Colours {
		colours[c] = true
	}

	b := &Board{
		cfg:     cfg,
		colours: colours,
		corners: make(map[Pin]*Note),
		pins:    make(map[Pin]struct{}),
		nextID:  1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Config returns the board configuration.
func (b *Board) Config() Config {
	cfg := b.cfg
	cfg.Colours = append([]string(nil), b.cfg.Colours...)
	return cfg
}

// PostNote stores a new note and returns its id.
//
// Fails with COLOUR_NOT_SUPPORTED for an unknown colour, OUT_OF_BOUNDS when
// the note rectangle leaves the board, and OVERLAP_ERROR when another note
// already has the identical corner. Partial overlap is allowed.
func (b *Board) PostNote(x, y int, colour, message string) (int, error) {
	if !b.colours[colour] {
		return 0, newError(CodeColourNotSupported, "Colour '%s' is not supported.", colour)
	}
	if !b.noteFits(x, y) {
		return 0, newError(CodeOutOfBounds, "Note does not fit within board boundaries.")
	}

	b.mu.Lock()
	corner := Pin{X: x, Y: y}
	if _, exists := b.corners[corner]; exists {
		b.mu.Unlock()
		return 0, newError(CodeOverlap, "Note completely overlaps existing note at (%d,%d).", x, y)
	}

	note := &Note{
		ID:      b.nextID,
		X:       x,
		Y:       y,
		Colour:  colour,
		Message: message,
	}
	b.nextID++
	b.notes = append(b.notes, note)
	b.corners[corner] = note

	ev := b.event(EventNotePosted)
	ev.NoteID = note.ID
	ev.X, ev.Y = x, y
	ev.Colour = colour
	ev.Message = message
	b.emit(ev)
	b.mu.Unlock()

	return note.ID, nil
}

// PlacePin pins every note containing (x, y).
//
// Fails with OUT_OF_BOUNDS when the point is off the board and
// NO_NOTE_AT_COORDINATE when no note contains it. Placing a pin that already
// exists is a no-op: notes posted since the first placement do not gain it.
func (b *Board) PlacePin(x, y int) error {
	if !b.pointOnBoard(x, y) {
		return newError(CodeOutOfBounds, "Pin coordinate is outside board boundaries.")
	}

	b.mu.Lock()
	covering := b.covering(x, y)
	if len(covering) == 0 {
		b.mu.Unlock()
		return newError(CodeNoNoteAtCoordinate, "No note found at coordinate (%d,%d).", x, y)
	}

	p := Pin{X: x, Y: y}
	if _, exists := b.pins[p]; exists {
		b.mu.Unlock()
		return nil
	}

	b.pins[p] = struct{}{}
	ids := make([]int, 0, len(covering))
	for _, n := range covering {
		n.addPin(p)
		ids = append(ids, n.ID)
	}

	ev := b.event(EventPinPlaced)
	ev.X, ev.Y = x, y
	ev.NoteIDs = ids
	b.emit(ev)
	b.mu.Unlock()

	return nil
}

// RemovePin removes the pin at (x, y) from the board and from every note
// that holds it.
//
// Fails with OUT_OF_BOUNDS when the point is off the board and PIN_NOT_FOUND
// when no pin exists there.
func (b *Board) RemovePin(x, y int) error {
	if !b.pointOnBoard(x, y) {
		return newError(CodeOutOfBounds, "Pin coordinate is outside board boundaries.")
	}

	b.mu.Lock()
	p := Pin{X: x, Y: y}
	if _, exists := b.pins[p]; !exists {
		b.mu.Unlock()
		return newError(CodePinNotFound, "No pin exists at coordinate (%d,%d).", x, y)
	}

	delete(b.pins, p)
	var ids []int
	for _, n := range b.notes {
		if n.HasPin(p) {
			n.removePin(p)
			ids = append(ids, n.ID)
		}
	}

	ev := b.event(EventPinRemoved)
	ev.X, ev.Y = x, y
	ev.NoteIDs = ids
	b.emit(ev)
	b.mu.Unlock()

	return nil
}

// Shake removes every unpinned note and returns the removed ids.
// Pinned notes and the global pin set are untouched.
func (b *Board) Shake() []int {
	b.mu.Lock()
	kept := b.notes[:0]
	var removed []int
	for _, n := range b.notes {
		if n.Pinned() {
			kept = append(kept, n)
			continue
		}
		removed = append(removed, n.ID)
		delete(b.corners, Pin{X: n.X, Y: n.Y})
	}
	// Drop references held past the new length.
	for i := len(kept); i < len(b.notes); i++ {
		b.notes[i] = nil
	}
	b.notes = kept

	ev := b.event(EventBoardShaken)
	ev.Removed = removed
	b.emit(ev)
	b.mu.Unlock()

	return removed
}

// Clear removes all notes and all pins and returns the removed note ids.
// Note ids keep increasing afterwards.
func (b *Board) Clear() []int {
	b.mu.Lock()
	removed := make([]int, 0, len(b.notes))
	for _, n := range b.notes {
		removed = append(removed, n.ID)
	}
	b.notes = nil
	b.corners = make(map[Pin]*Note)
	b.pins = make(map[Pin]struct{})

	ev := b.event(EventBoardCleared)
	ev.Removed = removed
	b.emit(ev)
	b.mu.Unlock()

	return removed
}

// QueryNotes returns copies of the notes matching every set field of q,
// in ascending id order.
func (b *Board) QueryNotes(q Query) []Note {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Note, 0, len(b.notes))
	for _, n := range b.notes {
		if q.matches(n, b.cfg.NoteWidth, b.cfg.NoteHeight) {
			out = append(out, n.clone())
		}
	}
	return out
}

// Pins returns the global pin set ordered by x then y.
func (b *Board) Pins() []Pin {
	b.mu.RLock()
	out := make([]Pin, 0, len(b.pins))
	for p := range b.pins {
		out = append(out, p)
	}
	b.mu.RUnlock()

	sortPins(out)
	return out
}

// Stats returns a consistent summary of board contents.
func (b *Board) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{
		Notes:      len(b.notes),
		Pins:       len(b.pins),
		NextNoteID: b.nextID,
	}
	for _, n := range b.notes {
		if n.Pinned() {
			s.PinnedNotes++
		}
	}
	return s
}

// covering returns the notes containing (x, y). Caller must hold b.mu.
func (b *Board) covering(x, y int) []*Note {
	var out []*Note
	for _, n := range b.notes {
		if n.Contains(x, y, b.cfg.NoteWidth, b.cfg.NoteHeight) {
			out = append(out, n)
		}
	}
	return out
}

func (b *Board) noteFits(x, y int) bool {
	// Compare against the remaining room rather than x+w so huge inputs cannot overflow.
	return x >= 0 && y >= 0 && x <= b.cfg.Width-b.cfg.NoteWidth && y <= b.cfg.Height-b.cfg.NoteHeight
}

func (b *Board) pointOnBoard(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.cfg.Width && y < b.cfg.Height
}

// event allocates the next sequence number. Caller must hold b.mu for writing.
func (b *Board) event(t EventType) Event {
	b.seq++
	if b.notify == nil {
		return Event{Seq: b.seq, Type: t}
	}
	return newEvent(b.seq, t)
}

// emit delivers ev while b.mu is still held, so notifiers see events in Seq
// order.
func (b *Board) emit(ev Event) {
	if b.notify != nil {
		b.notify(ev)
	}
}
