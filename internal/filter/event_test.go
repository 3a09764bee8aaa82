package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyluth/corkboard/pkg/board"
)

func TestCriteria_Matches(t *testing.T) {
	posted := &board.Event{Type: board.EventNotePosted, NoteID: 3, Colour: "red"}
	pinned := &board.Event{Type: board.EventPinPlaced, X: 5, Y: 5, NoteIDs: []int{1, 3}}
	shaken := &board.Event{Type: board.EventBoardShaken, Removed: []int{2}}

	tests := []struct {
		name     string
		criteria *Criteria
		event    *board.Event
		want     bool
	}{
		{"nil matches all", nil, shaken, true},
		{"empty matches all", &Criteria{}, posted, true},
		{"exact type", &Criteria{TypeGlob: "note_posted"}, posted, true},
		{"type mismatch", &Criteria{TypeGlob: "note_posted"}, pinned, false},
		{"type glob", &Criteria{TypeGlob: "pin_*"}, pinned, true},
		{"board glob", &Criteria{TypeGlob: "board_*"}, posted, false},
		{"colour match", &Criteria{Colour: "red"}, posted, true},
		{"colour mismatch", &Criteria{Colour: "white"}, posted, false},
		{"colour excludes colourless events", &Criteria{Colour: "red"}, pinned, false},
		{"note id on post", &Criteria{NoteID: 3}, posted, true},
		{"note id under pin", &Criteria{NoteID: 3}, pinned, true},
		{"note id removed", &Criteria{NoteID: 2}, shaken, true},
		{"note id untouched", &Criteria{NoteID: 9}, pinned, false},
		{"all criteria", &Criteria{TypeGlob: "note_*", Colour: "red", NoteID: 3}, posted, true},
		{"one criterion fails", &Criteria{TypeGlob: "note_*", Colour: "red", NoteID: 4}, posted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Matches(tt.event))
		})
	}
}

func TestCriteria_HasFilters(t *testing.T) {
	var nilCriteria *Criteria
	assert.False(t, nilCriteria.HasFilters())
	assert.False(t, (&Criteria{}).HasFilters())
	assert.True(t, (&Criteria{TypeGlob: "pin_*"}).HasFilters())
	assert.True(t, (&Criteria{Colour: "red"}).HasFilters())
	assert.True(t, (&Criteria{NoteID: 1}).HasFilters())
}

func TestCriteria_Validate(t *testing.T) {
	assert.NoError(t, (&Criteria{TypeGlob: "pin_*"}).Validate())
	assert.Error(t, (&Criteria{TypeGlob: "pin_["}).Validate())
}
