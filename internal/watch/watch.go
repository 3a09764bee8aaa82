// Package watch renders the board event stream for the CLI.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/corkboard/internal/filter"
	"github.com/dyluth/corkboard/pkg/board"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable output with timestamps and emojis
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON, one event per line
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// EventSource delivers board events. *eventbus.Subscription implements it.
type EventSource interface {
	Events() <-chan board.Event
	Errors() <-chan error
}

// StreamEvents writes events from src that match criteria to w until ctx is
// cancelled or the source closes. A nil criteria passes everything. In default
// format, sequence gaps and subscription errors are reported inline; JSON
// output carries events only.
func StreamEvents(ctx context.Context, src EventSource, format OutputFormat, criteria *filter.Criteria, w io.Writer) error {
	enc := json.NewEncoder(w)
	errs := src.Errors()
	var lastSeq uint64

	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if format == OutputFormatDefault {
				fmt.Fprintf(w, "⚠️  %v\n", err)
			}

		case ev, ok := <-src.Events():
			if !ok {
				return nil
			}

			// Gaps are judged on the unfiltered stream
			if format == OutputFormatDefault && lastSeq != 0 && ev.Seq > lastSeq+1 {
				fmt.Fprintf(w, "⚠️  missed %d events (seq %d to %d)\n", ev.Seq-lastSeq-1, lastSeq+1, ev.Seq-1)
			}
			if ev.Seq > lastSeq {
				lastSeq = ev.Seq
			}

			if !criteria.Matches(&ev) {
				continue
			}

			if format == OutputFormatJSON {
				if err := enc.Encode(ev); err != nil {
					return fmt.Errorf("failed to write event: %w", err)
				}
				continue
			}

			ts := time.UnixMilli(ev.AtMs).Format("15:04:05")
			if _, err := fmt.Fprintf(w, "[%s] %s\n", ts, FormatEvent(ev)); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
		}
	}
}

// FormatEvent renders one event as a single human-readable line.
func FormatEvent(ev board.Event) string {
	switch ev.Type {
	case board.EventNotePosted:
		line := fmt.Sprintf("📝 Note Posted: id=%d at (%d,%d) colour=%s", ev.NoteID, ev.X, ev.Y, ev.Colour)
		if ev.Message != "" {
			line += fmt.Sprintf(" %q", ev.Message)
		}
		return line
	case board.EventPinPlaced:
		return fmt.Sprintf("📌 Pin Placed: at (%d,%d) holding %s", ev.X, ev.Y, noteList(ev.NoteIDs))
	case board.EventPinRemoved:
		return fmt.Sprintf("🔓 Pin Removed: at (%d,%d) releasing %s", ev.X, ev.Y, noteList(ev.NoteIDs))
	case board.EventBoardShaken:
		return fmt.Sprintf("🌀 Board Shaken: removed %s", noteList(ev.Removed))
	case board.EventBoardCleared:
		return fmt.Sprintf("🧹 Board Cleared: removed %s", noteList(ev.Removed))
	default:
		return fmt.Sprintf("❓ Unknown event %q (seq %d)", ev.Type, ev.Seq)
	}
}

func noteList(ids []int) string {
	switch len(ids) {
	case 0:
		return "no notes"
	case 1:
		return fmt.Sprintf("note %d", ids[0])
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%d notes [%s]", len(ids), strings.Join(parts, " "))
}
