package filter

import (
	"path/filepath"
	"slices"

	"github.com/dyluth/corkboard/pkg/board"
)

// Criteria defines filtering criteria for board events.
// All filters are ANDed together - an event must match ALL criteria to pass.
type Criteria struct {
	TypeGlob string // Glob pattern for event type, empty = no filter
	Colour   string // Exact match on the posted note's colour, empty = no filter
	NoteID   int    // Note the event touches, 0 = no filter
}

// Matches returns true if the event matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(ev *board.Event) bool {
	if c == nil {
		return true
	}

	if c.TypeGlob != "" {
		matched, err := filepath.Match(c.TypeGlob, string(ev.Type))
		if err != nil || !matched {
			return false
		}
	}

	// Only note_posted events carry a colour
	if c.Colour != "" && ev.Colour != c.Colour {
		return false
	}

	if c.NoteID != 0 && !touches(ev, c.NoteID) {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c != nil && (c.TypeGlob != "" || c.Colour != "" || c.NoteID != 0)
}

// Validate reports a malformed type glob.
func (c *Criteria) Validate() error {
	if c == nil || c.TypeGlob == "" {
		return nil
	}
	_, err := filepath.Match(c.TypeGlob, "")
	return err
}

func touches(ev *board.Event, id int) bool {
	return ev.NoteID == id || slices.Contains(ev.NoteIDs, id) || slices.Contains(ev.Removed, id)
}
