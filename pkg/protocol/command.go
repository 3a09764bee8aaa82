package protocol

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dyluth/corkboard/pkg/board"
)

// Command is a parsed client request.
type Command interface {
	// Keyword returns the upper-case command keyword.
	Keyword() string
	// String encodes the command as a request line without the trailing newline.
	String() string
}

// PostCommand asks the board to store a note.
type PostCommand struct {
	X, Y    int
	Colour  string
	Message string
}

// GetCommand queries notes. Zero-valued filters are omitted.
type GetCommand struct {
	Colour   string
	Contains *board.Pin
	RefersTo string
}

// GetPinsCommand lists every pin on the board.
type GetPinsCommand struct{}

// PinCommand places a pin.
type PinCommand struct{ X, Y int }

// UnpinCommand removes a pin.
type UnpinCommand struct{ X, Y int }

// ShakeCommand removes every unpinned note.
type ShakeCommand struct{}

// ClearCommand removes every note and pin.
type ClearCommand struct{}

// DisconnectCommand ends the session after an OK reply.
type DisconnectCommand struct{}

func (PostCommand) Keyword() string       { return "POST" }
func (GetCommand) Keyword() string        { return "GET" }
func (GetPinsCommand) Keyword() string    { return "GET" }
func (PinCommand) Keyword() string        { return "PIN" }
func (UnpinCommand) Keyword() string      { return "UNPIN" }
func (ShakeCommand) Keyword() string      { return "SHAKE" }
func (ClearCommand) Keyword() string      { return "CLEAR" }
func (DisconnectCommand) Keyword() string { return "DISCONNECT" }

func (c PostCommand) String() string {
	line := "POST " + strconv.Itoa(c.X) + " " + strconv.Itoa(c.Y) + " " + c.Colour
	if c.Message != "" {
		line += " " + c.Message
	}
	return line
}

func (c GetCommand) String() string {
	parts := []string{"GET"}
	if c.Colour != "" {
		parts = append(parts, "colour="+c.Colour)
	}
	if c.Contains != nil {
		parts = append(parts, "contains="+strconv.Itoa(c.Contains.X), strconv.Itoa(c.Contains.Y))
	}
	if c.RefersTo != "" {
		parts = append(parts, "refersTo="+c.RefersTo)
	}
	return strings.Join(parts, " ")
}

func (GetPinsCommand) String() string { return "GET PINS" }

func (c PinCommand) String() string {
	return "PIN " + strconv.Itoa(c.X) + " " + strconv.Itoa(c.Y)
}

func (c UnpinCommand) String() string {
	return "UNPIN " + strconv.Itoa(c.X) + " " + strconv.Itoa(c.Y)
}

func (ShakeCommand) String() string      { return "SHAKE" }
func (ClearCommand) String() string      { return "CLEAR" }
func (DisconnectCommand) String() string { return "DISCONNECT" }

// Query converts the filters into a board query.
func (c GetCommand) Query() board.Query {
	return board.Query{Colour: c.Colour, Contains: c.Contains, RefersTo: c.RefersTo}
}

// Parse turns one request line into a Command. The keyword is matched
// case-insensitively; everything else is case-sensitive. Failures are
// returned as *ParseError.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, formatError("Empty command.")
	}

	keyword := strings.ToUpper(fields[0])
	switch keyword {
	case "POST":
		return parsePost(line, fields)
	case "GET":
		return parseGet(fields[1:])
	case "PIN":
		x, y, err := parseCoordinates(keyword, fields)
		if err != nil {
			return nil, err
		}
		return PinCommand{X: x, Y: y}, nil
	case "UNPIN":
		x, y, err := parseCoordinates(keyword, fields)
		if err != nil {
			return nil, err
		}
		return UnpinCommand{X: x, Y: y}, nil
	case "SHAKE":
		if len(fields) != 1 {
			return nil, formatError("SHAKE takes no arguments.")
		}
		return ShakeCommand{}, nil
	case "CLEAR":
		if len(fields) != 1 {
			return nil, formatError("CLEAR takes no arguments.")
		}
		return ClearCommand{}, nil
	case "DISCONNECT":
		if len(fields) != 1 {
			return nil, formatError("DISCONNECT takes no arguments.")
		}
		return DisconnectCommand{}, nil
	default:
		return nil, formatError("Unknown command: %s", keyword)
	}
}

func parsePost(line string, fields []string) (Command, error) {
	if len(fields) < 4 {
		return nil, formatError("POST requires X and Y coordinates, and a colour.")
	}
	x, err := parseInt(fields[1])
	if err != nil {
		return nil, err
	}
	y, err := parseInt(fields[2])
	if err != nil {
		return nil, err
	}

	// The message is the raw remainder, not re-joined tokens, so its
	// internal whitespace survives.
	_, rest := cutFields(line, 4)
	return PostCommand{
		X:       x,
		Y:       y,
		Colour:  fields[3],
		Message: strings.TrimSpace(rest),
	}, nil
}

func parseGet(args []string) (Command, error) {
	if len(args) == 1 && strings.EqualFold(args[0], "PINS") {
		return GetPinsCommand{}, nil
	}

	var cmd GetCommand
	for i := 0; i < len(args); i++ {
		tok := args[i]
		switch {
		case strings.HasPrefix(tok, "colour="):
			cmd.Colour = strings.TrimPrefix(tok, "colour=")
			if cmd.Colour == "" {
				return nil, formatError("colour= requires a colour.")
			}
		case strings.HasPrefix(tok, "contains="):
			if i+1 >= len(args) {
				return nil, formatError("contains= requires X and Y coordinates.")
			}
			x, err := parseInt(strings.TrimPrefix(tok, "contains="))
			if err != nil {
				return nil, err
			}
			y, err := parseInt(args[i+1])
			if err != nil {
				return nil, err
			}
			cmd.Contains = &board.Pin{X: x, Y: y}
			i++
		case strings.HasPrefix(tok, "refersTo="):
			cmd.RefersTo = strings.TrimPrefix(tok, "refersTo=")
		default:
			return nil, formatError("Unknown GET filter: %s", tok)
		}
	}
	return cmd, nil
}

func parseCoordinates(keyword string, fields []string) (int, int, error) {
	if len(fields) != 3 {
		return 0, 0, formatError("%s requires X and Y coordinates.", keyword)
	}
	x, err := parseInt(fields[1])
	if err != nil {
		return 0, 0, err
	}
	y, err := parseInt(fields[2])
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, intError(s)
	}
	return n, nil
}

// cutFields splits off the first n whitespace-delimited fields of s and
// returns them with the remainder, whose leading whitespace is dropped.
// If s has fewer than n fields, rest is empty.
func cutFields(s string, n int) (fields []string, rest string) {
	for len(fields) < n {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if s == "" {
			return fields, ""
		}
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			return append(fields, s), ""
		}
		fields = append(fields, s[:end])
		s = s[end:]
	}
	return fields, strings.TrimLeftFunc(s, unicode.IsSpace)
}
