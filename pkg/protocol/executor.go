package protocol

import (
	"fmt"

	"github.com/dyluth/corkboard/pkg/board"
)

// Executor applies parsed commands to a shared board. It holds no state of
// its own and may be shared by every session.
type Executor struct {
	board *board.Board
}

// NewExecutor creates an executor bound to b.
func NewExecutor(b *board.Board) *Executor {
	return &Executor{board: b}
}

// Handshake returns the HELLO line for the bound board.
func (e *Executor) Handshake() Handshake {
	return NewHandshake(e.board.Config())
}

// Execute runs one command and returns its response. Board validation
// failures come back as *Error responses.
func (e *Executor) Execute(cmd Command) Response {
	switch c := cmd.(type) {
	case PostCommand:
		id, err := e.board.PostNote(c.X, c.Y, c.Colour, c.Message)
		if err != nil {
			return ErrorFrom(err)
		}
		return OKNote{ID: id}

	case GetCommand:
		notes := e.board.QueryNotes(c.Query())
		records := make([]NoteRecord, 0, len(notes))
		for _, n := range notes {
			records = append(records, NewNoteRecord(n))
		}
		return NotesList{Notes: records}

	case GetPinsCommand:
		return PinsList{Pins: e.board.Pins()}

	case PinCommand:
		if err := e.board.PlacePin(c.X, c.Y); err != nil {
			return ErrorFrom(err)
		}
		return OK{}

	case UnpinCommand:
		if err := e.board.RemovePin(c.X, c.Y); err != nil {
			return ErrorFrom(err)
		}
		return OK{}

	case ShakeCommand:
		e.board.Shake()
		return OK{}

	case ClearCommand:
		e.board.Clear()
		return OK{}

	case DisconnectCommand:
		return OK{}

	default:
		return &Error{Code: CodeInvalidFormat, Description: fmt.Sprintf("Unsupported command: %s", cmd.Keyword())}
	}
}

// ExecuteLine parses and runs one request line. disconnect is true only for a
// well-formed DISCONNECT, after whose OK the session must end.
func (e *Executor) ExecuteLine(line string) (resp Response, disconnect bool) {
	cmd, err := Parse(line)
	if err != nil {
		return ErrorFrom(err), false
	}
	_, disconnect = cmd.(DisconnectCommand)
	return e.Execute(cmd), disconnect
}
