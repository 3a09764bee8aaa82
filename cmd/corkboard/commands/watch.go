package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/corkboard/internal/config"
	"github.com/dyluth/corkboard/internal/eventbus"
	"github.com/dyluth/corkboard/internal/filter"
	"github.com/dyluth/corkboard/internal/printer"
	"github.com/dyluth/corkboard/internal/timespec"
	"github.com/dyluth/corkboard/internal/watch"
)

var (
	watchRedisURL     string
	watchInstanceName string
	watchOutputFormat string
	watchType         string
	watchColour       string
	watchNote         int
	watchUntil        string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time board activity",
	Long: `Monitor board changes as they happen.

Streams note posts, pin changes, shakes, and clears published by a server
started with --redis-url. Events published while watch is not connected are
not replayed; gaps in the sequence are reported.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Filters (ANDed together):
  --type    glob on the event type, e.g. 'pin_*' or note_posted
  --colour  only notes posted in this colour
  --note    only events touching this note id

Examples:
  corkboard watch --redis-url redis://localhost:6379
  corkboard watch --type 'board_*' --until 10m
  corkboard watch --instance prod --output=json > events.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchRedisURL, "redis-url", "redis://localhost:6379", "Redis URL the server publishes to")
	watchCmd.Flags().StringVarP(&watchInstanceName, "instance", "n", config.DefaultInstance, "Event channel namespace")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringVar(&watchType, "type", "", "Only events whose type matches this glob")
	watchCmd.Flags().StringVar(&watchColour, "colour", "", "Only note posts in this colour")
	watchCmd.Flags().IntVar(&watchNote, "note", 0, "Only events touching this note id")
	watchCmd.Flags().StringVar(&watchUntil, "until", "", "Stop at this time (duration from now like '10m', or RFC3339)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	outputFormat, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	criteria := &filter.Criteria{TypeGlob: watchType, Colour: watchColour, NoteID: watchNote}
	if err := criteria.Validate(); err != nil {
		return printer.Error("invalid --type pattern", err.Error(), []string{"Example: --type 'pin_*'"})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchUntil != "" {
		deadline, err := timespec.Parse(watchUntil, time.Now())
		if err != nil {
			return printer.Error("invalid --until", err.Error(), []string{"Examples: --until 10m, --until 2025-10-29T13:00:00Z"})
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	bus, err := eventbus.NewClientFromURL(watchRedisURL, watchInstanceName)
	if err != nil {
		return printer.Error("invalid Redis URL", err.Error(), []string{"Example: --redis-url redis://localhost:6379/0"})
	}
	defer bus.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err = bus.Ping(pingCtx)
	cancel()
	if err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", watchRedisURL),
			map[string]string{"Error": err.Error()},
			[]string{"Check that Redis is running and that the server was started with the same --redis-url"},
		)
	}

	sub, err := bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	out := cmd.OutOrStdout()
	if outputFormat == watch.OutputFormatDefault {
		last, err := bus.LastEvent(ctx)
		switch {
		case err == nil:
			fmt.Fprintf(out, "Watching instance %q (last event seq %d: %s)\n", watchInstanceName, last.Seq, watch.FormatEvent(*last))
		case eventbus.IsNotFound(err):
			fmt.Fprintf(out, "Watching instance %q (no events yet)\n", watchInstanceName)
		default:
			return fmt.Errorf("failed to read last event: %w", err)
		}
	}

	return watch.StreamEvents(ctx, sub, outputFormat, criteria, out)
}
