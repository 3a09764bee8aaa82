package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dyluth/corkboard/pkg/board"
)

// ReadLine reads one line and strips the line terminator. A final
// unterminated line before EOF is returned as a line.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadResponse reads the reply to cmd. An ERROR line is returned as an
// *Error response, not as a Go error; Go errors signal I/O failure or a
// reply that breaks the grammar.
func ReadResponse(r *bufio.Reader, cmd Command) (Response, error) {
	line, err := ReadLine(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if rest, ok := strings.CutPrefix(line, "ERROR "); ok {
		code, desc, _ := strings.Cut(rest, " ")
		if code == "" {
			return nil, malformed("error line without code: %q", line)
		}
		return &Error{Code: code, Description: desc}, nil
	}

	switch cmd.(type) {
	case PostCommand:
		idStr, ok := strings.CutPrefix(line, "OK NOTE ")
		if !ok {
			return nil, malformed("expected OK NOTE, got %q", line)
		}
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, malformed("invalid note id %q", idStr)
		}
		return OKNote{ID: id}, nil

	case GetCommand:
		lines, err := readList(r, line)
		if err != nil {
			return nil, err
		}
		notes := make([]NoteRecord, 0, len(lines))
		for _, l := range lines {
			n, err := ParseNoteLine(l)
			if err != nil {
				return nil, err
			}
			notes = append(notes, n)
		}
		return NotesList{Notes: notes}, nil

	case GetPinsCommand:
		lines, err := readList(r, line)
		if err != nil {
			return nil, err
		}
		pins := make([]board.Pin, 0, len(lines))
		for _, l := range lines {
			p, err := ParsePinLine(l)
			if err != nil {
				return nil, err
			}
			pins = append(pins, p)
		}
		return PinsList{Pins: pins}, nil

	default:
		if line != "OK" {
			return nil, malformed("expected OK, got %q", line)
		}
		return OK{}, nil
	}
}

// readList consumes exactly the number of data lines announced by header,
// then the END sentinel.
func readList(r *bufio.Reader, header string) ([]string, error) {
	countStr, ok := strings.CutPrefix(header, "OK ")
	if !ok {
		return nil, malformed("expected OK <n>, got %q", header)
	}
	n, err := strconv.Atoi(countStr)
	if err != nil || n < 0 {
		return nil, malformed("invalid list count %q", countStr)
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		l, err := ReadLine(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read list line %d of %d: %w", i+1, n, err)
		}
		lines = append(lines, l)
	}

	end, err := ReadLine(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read list terminator: %w", err)
	}
	if end != "END" {
		return nil, malformed("expected END after %d lines, got %q", n, end)
	}
	return lines, nil
}

// ParseNoteLine parses "NOTE <id> <x> <y> <colour> <PINNED|UNPINNED> [message]".
func ParseNoteLine(line string) (NoteRecord, error) {
	fields, message := cutFields(line, 6)
	if len(fields) < 6 || fields[0] != "NOTE" {
		return NoteRecord{}, malformed("expected NOTE line, got %q", line)
	}

	var nums [3]int
	for i := range nums {
		v, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return NoteRecord{}, malformed("invalid integer %q in note line", fields[i+1])
		}
		nums[i] = v
	}

	var pinned bool
	switch fields[5] {
	case "PINNED":
		pinned = true
	case "UNPINNED":
	default:
		return NoteRecord{}, malformed("invalid pin status %q", fields[5])
	}

	return NoteRecord{
		ID:      nums[0],
		X:       nums[1],
		Y:       nums[2],
		Colour:  fields[4],
		Pinned:  pinned,
		Message: message,
	}, nil
}

// ParsePinLine parses "PIN <x> <y>".
func ParsePinLine(line string) (board.Pin, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "PIN" {
		return board.Pin{}, malformed("expected PIN line, got %q", line)
	}
	x, err := strconv.Atoi(fields[1])
	if err != nil {
		return board.Pin{}, malformed("invalid integer %q in pin line", fields[1])
	}
	y, err := strconv.Atoi(fields[2])
	if err != nil {
		return board.Pin{}, malformed("invalid integer %q in pin line", fields[2])
	}
	return board.Pin{X: x, Y: y}, nil
}
