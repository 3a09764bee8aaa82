package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dyluth/corkboard/pkg/board"
)

// Response is a server reply to one Command.
type Response interface {
	isResponse()
}

// OK acknowledges a command that returns no data.
type OK struct{}

// OKNote acknowledges a POST with the assigned note id.
type OKNote struct {
	ID int
}

// Error reports a validation or format failure. The connection stays open.
type Error struct {
	Code        string
	Description string
}

// NotesList answers GET.
type NotesList struct {
	Notes []NoteRecord
}

// PinsList answers GET PINS.
type PinsList struct {
	Pins []board.Pin
}

func (OK) isResponse()        {}
func (OKNote) isResponse()    {}
func (*Error) isResponse()    {}
func (NotesList) isResponse() {}
func (PinsList) isResponse()  {}

// Error implements the error interface as "<CODE> <description>".
func (e *Error) Error() string {
	return e.Code + " " + e.Description
}

// NoteRecord is the wire view of one note.
type NoteRecord struct {
	ID      int    `json:"id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Colour  string `json:"colour"`
	Pinned  bool   `json:"pinned"`
	Message string `json:"message"`
}

// NewNoteRecord converts a board note to its wire form.
func NewNoteRecord(n board.Note) NoteRecord {
	return NoteRecord{
		ID:      n.ID,
		X:       n.X,
		Y:       n.Y,
		Colour:  n.Colour,
		Pinned:  n.Pinned(),
		Message: n.Message,
	}
}

// String renders the record as a NOTE data line.
func (r NoteRecord) String() string {
	status := "UNPINNED"
	if r.Pinned {
		status = "PINNED"
	}
	line := fmt.Sprintf("NOTE %d %d %d %s %s", r.ID, r.X, r.Y, r.Colour, status)
	if r.Message != "" {
		line += " " + r.Message
	}
	return line
}

// ErrorFrom converts a board or parse failure to an Error response.
// Any other error is reported as INVALID_FORMAT with its message.
func ErrorFrom(err error) *Error {
	if be, ok := board.AsError(err); ok {
		return &Error{Code: string(be.Code), Description: be.Description}
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return &Error{Code: pe.Code, Description: pe.Description}
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return &Error{Code: CodeInvalidFormat, Description: err.Error()}
}

// Render returns the response lines without newlines.
func Render(resp Response) []string {
	switch r := resp.(type) {
	case OK:
		return []string{"OK"}
	case OKNote:
		return []string{"OK NOTE " + strconv.Itoa(r.ID)}
	case *Error:
		return []string{"ERROR " + r.Code + " " + r.Description}
	case NotesList:
		lines := make([]string, 0, len(r.Notes)+2)
		lines = append(lines, "OK "+strconv.Itoa(len(r.Notes)))
		for _, n := range r.Notes {
			lines = append(lines, n.String())
		}
		return append(lines, "END")
	case PinsList:
		lines := make([]string, 0, len(r.Pins)+2)
		lines = append(lines, "OK "+strconv.Itoa(len(r.Pins)))
		for _, p := range r.Pins {
			lines = append(lines, fmt.Sprintf("PIN %d %d", p.X, p.Y))
		}
		return append(lines, "END")
	default:
		panic(fmt.Sprintf("protocol: unknown response type %T", resp))
	}
}

// WriteResponse writes the rendered response, one line per newline, and
// flushes w when it is buffered.
func WriteResponse(w io.Writer, resp Response) error {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	for _, line := range Render(resp) {
		if _, err := bw.WriteString(line); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush response: %w", err)
	}
	return nil
}
