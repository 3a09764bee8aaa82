package protocol

import (
	"strconv"
	"strings"

	"github.com/dyluth/corkboard/pkg/board"
)

// Handshake is the HELLO line a server sends once at connection start.
type Handshake struct {
	BoardWidth  int
	BoardHeight int
	NoteWidth   int
	NoteHeight  int
	Colours     []string
}

// NewHandshake describes the given board configuration.
func NewHandshake(cfg board.Config) Handshake {
	return Handshake{
		BoardWidth:  cfg.Width,
		BoardHeight: cfg.Height,
		NoteWidth:   cfg.NoteWidth,
		NoteHeight:  cfg.NoteHeight,
		Colours:     append([]string(nil), cfg.Colours...),
	}
}

// String renders "HELLO <bw> <bh> <nw> <nh> COLOURS <k> <c1> ... <ck>".
func (h Handshake) String() string {
	var sb strings.Builder
	sb.WriteString("HELLO ")
	for _, n := range []int{h.BoardWidth, h.BoardHeight, h.NoteWidth, h.NoteHeight} {
		sb.WriteString(strconv.Itoa(n))
		sb.WriteByte(' ')
	}
	sb.WriteString("COLOURS ")
	sb.WriteString(strconv.Itoa(len(h.Colours)))
	for _, c := range h.Colours {
		sb.WriteByte(' ')
		sb.WriteString(c)
	}
	return sb.String()
}

// Config returns the board configuration the handshake describes.
func (h Handshake) Config() board.Config {
	return board.Config{
		Width:      h.BoardWidth,
		Height:     h.BoardHeight,
		NoteWidth:  h.NoteWidth,
		NoteHeight: h.NoteHeight,
		Colours:    append([]string(nil), h.Colours...),
	}
}

// ParseHandshake parses a HELLO line. The colour count must match the
// number of colours that follow it exactly.
func ParseHandshake(line string) (Handshake, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 7 || tokens[0] != "HELLO" || tokens[5] != "COLOURS" {
		return Handshake{}, malformed("expected HELLO handshake, got %q", line)
	}

	var dims [4]int
	for i := range dims {
		n, err := strconv.Atoi(tokens[i+1])
		if err != nil || n < 1 {
			return Handshake{}, malformed("invalid dimension %q in handshake", tokens[i+1])
		}
		dims[i] = n
	}

	k, err := strconv.Atoi(tokens[6])
	if err != nil || k < 0 {
		return Handshake{}, malformed("invalid colour count %q in handshake", tokens[6])
	}
	if len(tokens) != 7+k {
		return Handshake{}, malformed("handshake declares %d colours but lists %d", k, len(tokens)-7)
	}

	return Handshake{
		BoardWidth:  dims[0],
		BoardHeight: dims[1],
		NoteWidth:   dims[2],
		NoteHeight:  dims[3],
		Colours:     append([]string(nil), tokens[7:]...),
	}, nil
}
