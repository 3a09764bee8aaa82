// Package printer formats CLI output: coloured status lines, structured
// errors for cobra commands, and tables of board contents.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/dyluth/corkboard/pkg/board"
	"github.com/dyluth/corkboard/pkg/protocol"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Printf("✓ %s", msg)
	} else {
		green.Print(msg)
	}
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Printf("⚠️  %s", msg)
	} else {
		yellow.Print(msg)
	}
}

// Error prints a formatted error with title, explanation, and suggestions to
// stderr and returns a bare error carrying the title for Cobra.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details printed between the
// explanation and the suggestions. Keys are printed in sorted order.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	writeError(os.Stderr, title, explanation, context, suggestions)
	return fmt.Errorf("%s", title)
}

func writeError(w io.Writer, title string, explanation string, context map[string]string, suggestions []string) {
	red.Fprintf(w, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(w, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for key := range context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(w, "\n")
		for _, key := range keys {
			fmt.Fprintf(w, "  %s: %s\n", key, context[key])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(w, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(w, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(w, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(w, "  %d. %s\n", i+1, suggestion)
			}
		}
	}
}

// NotesTable renders notes as a table.
func NotesTable(w io.Writer, notes []protocol.NoteRecord) error {
	if len(notes) == 0 {
		_, err := fmt.Fprintln(w, "No notes on the board.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "X", "Y", "Colour", "Pinned", "Message")
	for _, n := range notes {
		pinned := "no"
		if n.Pinned {
			pinned = "yes"
		}
		if err := table.Append(strconv.Itoa(n.ID), strconv.Itoa(n.X), strconv.Itoa(n.Y), n.Colour, pinned, n.Message); err != nil {
			return fmt.Errorf("failed to build notes table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render notes table: %w", err)
	}
	return nil
}

// PinsTable renders pins as a table.
func PinsTable(w io.Writer, pins []board.Pin) error {
	if len(pins) == 0 {
		_, err := fmt.Fprintln(w, "No pins on the board.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("X", "Y")
	for _, p := range pins {
		if err := table.Append(strconv.Itoa(p.X), strconv.Itoa(p.Y)); err != nil {
			return fmt.Errorf("failed to build pins table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render pins table: %w", err)
	}
	return nil
}
