package board

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Config describes the immutable geometry and palette of a board.
// All notes share the same dimensions.
type Config struct {
	Width      int      `json:"width" yaml:"width"`             // Board width, exclusive upper bound for x
	Height     int      `json:"height" yaml:"height"`           // Board height, exclusive upper bound for y
	NoteWidth  int      `json:"note_width" yaml:"note_width"`   // Width of every note
	NoteHeight int      `json:"note_height" yaml:"note_height"` // Height of every note
	Colours    []string `json:"colours" yaml:"colours"`         // Valid note colours, in handshake order
}

// Validate checks that the configuration describes a usable board.
func (c Config) Validate() error {
	if c.Width < 1 {
		return fmt.Errorf("board width must be at least 1, got %d", c.Width)
	}
	if c.Height < 1 {
		return fmt.Errorf("board height must be at least 1, got %d", c.Height)
	}
	if c.NoteWidth < 1 {
		return fmt.Errorf("note width must be at least 1, got %d", c.NoteWidth)
	}
	if c.NoteHeight < 1 {
		return fmt.Errorf("note height must be at least 1, got %d", c.NoteHeight)
	}
	if c.NoteWidth > c.Width || c.NoteHeight > c.Height {
		return fmt.Errorf("note dimensions %dx%d must fit within board dimensions %dx%d",
			c.NoteWidth, c.NoteHeight, c.Width, c.Height)
	}
	if len(c.Colours) == 0 {
		return fmt.Errorf("at least one colour must be specified")
	}
	for i, colour := range c.Colours {
		if colour == "" {
			return fmt.Errorf("colour at index %d cannot be empty", i)
		}
		if strings.IndexFunc(colour, unicode.IsSpace) >= 0 {
			return fmt.Errorf("colour %q cannot contain whitespace", colour)
		}
	}
	return nil
}

// normalizedColours returns the colours with duplicates removed, keeping the
// first occurrence of each.
func (c Config) normalizedColours() []string {
	seen := make(map[string]bool, len(c.Colours))
	out := make([]string, 0, len(c.Colours))
	for _, colour := range c.Colours {
		if seen[colour] {
			continue
		}
		seen[colour] = true
		out = append(out, colour)
	}
	return out
}

// Pin is a thumbtack coordinate on the board.
type Pin struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String renders the pin as "x,y".
func (p Pin) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// Note is a fixed-size rectangular note on the board.
// Values returned by Board queries are copies and may be read freely.
type Note struct {
	ID      int    `json:"id"`      // Server-assigned, starts at 1, never reused
	X       int    `json:"x"`       // Upper-left corner x
	Y       int    `json:"y"`       // Upper-left corner y
	Colour  string `json:"colour"`  // One of the configured colours
	Message string `json:"message"` // Free text, may be empty

	pins map[Pin]struct{}
}

// Contains reports whether (px, py) lies within the half-open rectangle
// [X, X+noteW) x [Y, Y+noteH).
func (n *Note) Contains(px, py, noteW, noteH int) bool {
	return px >= n.X && px < n.X+noteW && py >= n.Y && py < n.Y+noteH
}

// Pinned reports whether at least one pin holds the note.
func (n *Note) Pinned() bool {
	return len(n.pins) > 0
}

// HasPin reports whether the given pin is recorded on the note.
func (n *Note) HasPin(p Pin) bool {
	_, ok := n.pins[p]
	return ok
}

// Pins returns the pins recorded on the note, ordered by x then y.
func (n *Note) Pins() []Pin {
	out := make([]Pin, 0, len(n.pins))
	for p := range n.pins {
		out = append(out, p)
	}
	sortPins(out)
	return out
}

func (n *Note) addPin(p Pin) {
	if n.pins == nil {
		n.pins = make(map[Pin]struct{})
	}
	n.pins[p] = struct{}{}
}

func (n *Note) removePin(p Pin) {
	delete(n.pins, p)
}

// clone returns a deep copy so callers cannot reach the stored pin set.
func (n *Note) clone() Note {
	c := Note{
		ID:      n.ID,
		X:       n.X,
		Y:       n.Y,
		Colour:  n.Colour,
		Message: n.Message,
	}
	if len(n.pins) > 0 {
		c.pins = make(map[Pin]struct{}, len(n.pins))
		for p := range n.pins {
			c.pins[p] = struct{}{}
		}
	}
	return c
}

// Query filters notes. Zero-valued fields impose no constraint.
type Query struct {
	Colour   string // Exact colour match
	Contains *Pin   // Point that must fall inside the note
	RefersTo string // Case-sensitive substring of the message
}

func (q Query) matches(n *Note, noteW, noteH int) bool {
	if q.Colour != "" && n.Colour != q.Colour {
		return false
	}
	if q.Contains != nil && !n.Contains(q.Contains.X, q.Contains.Y, noteW, noteH) {
		return false
	}
	if q.RefersTo != "" && !strings.Contains(n.Message, q.RefersTo) {
		return false
	}
	return true
}

// Stats is a point-in-time summary of board contents.
type Stats struct {
	Notes       int `json:"notes"`
	PinnedNotes int `json:"pinned_notes"`
	Pins        int `json:"pins"`
	NextNoteID  int `json:"next_note_id"`
}

func sortPins(pins []Pin) {
	sort.Slice(pins, func(i, j int) bool {
		if pins[i].X != pins[j].X {
			return pins[i].X < pins[j].X
		}
		return pins[i].Y < pins[j].Y
	})
}
