package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/corkboard/internal/printer"
	"github.com/dyluth/corkboard/pkg/board"
	"github.com/dyluth/corkboard/pkg/client"
)

var (
	getColour   string
	getContains string
	getRefersTo string
	getOutput   string
	pinsOutput  string
)

var postCmd = &cobra.Command{
	Use:   "post X Y COLOUR [MESSAGE...]",
	Short: "Post a note with its upper-left corner at (X, Y)",
	Long: `Post a note with its upper-left corner at (X, Y).

Everything after the colour is the message, spaces included.

Examples:
  corkboard post 10 20 red buy milk
  corkboard post 0 0 white`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, y, err := parseCoords(args[0], args[1])
		if err != nil {
			return err
		}
		message := strings.Join(args[3:], " ")

		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			id, err := c.Post(ctx, x, y, args[2], message)
			if err != nil {
				return err
			}
			printer.Success("Posted note %d at (%d,%d)\n", id, x, y)
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "List notes, optionally filtered",
	Long: `List notes in ascending id order.

Filters combine with AND:
  --colour      exact colour match
  --contains    X,Y point that must lie inside the note
  --refers-to   case-sensitive substring of the message

Examples:
  corkboard get
  corkboard get --colour red --contains 15,5
  corkboard get --refers-to milk --output json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := client.Filter{Colour: getColour, RefersTo: getRefersTo}
		if getContains != "" {
			p, err := parsePoint(getContains)
			if err != nil {
				return err
			}
			filter.Contains = &p
		}
		if err := validateOutput(getOutput); err != nil {
			return err
		}

		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			notes, err := c.Query(ctx, filter)
			if err != nil {
				return err
			}
			if getOutput == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(notes)
			}
			return printer.NotesTable(cmd.OutOrStdout(), notes)
		})
	},
}

var pinsCmd = &cobra.Command{
	Use:   "pins",
	Short: "List every pin on the board",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateOutput(pinsOutput); err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			pins, err := c.Pins(ctx)
			if err != nil {
				return err
			}
			if pinsOutput == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(pins)
			}
			return printer.PinsTable(cmd.OutOrStdout(), pins)
		})
	},
}

var pinCmd = &cobra.Command{
	Use:   "pin X Y",
	Short: "Pin every note covering (X, Y)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, y, err := parseCoords(args[0], args[1])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.Pin(ctx, x, y); err != nil {
				return err
			}
			printer.Success("Pinned (%d,%d)\n", x, y)
			return nil
		})
	},
}

var unpinCmd = &cobra.Command{
	Use:   "unpin X Y",
	Short: "Remove the pin at (X, Y)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, y, err := parseCoords(args[0], args[1])
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.Unpin(ctx, x, y); err != nil {
				return err
			}
			printer.Success("Unpinned (%d,%d)\n", x, y)
			return nil
		})
	},
}

var shakeCmd = &cobra.Command{
	Use:   "shake",
	Short: "Remove every unpinned note",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.Shake(ctx); err != nil {
				return err
			}
			printer.Success("Board shaken\n")
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every note and pin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *client.Client) error {
			if err := c.Clear(ctx); err != nil {
				return err
			}
			printer.Success("Board cleared\n")
			return nil
		})
	},
}

func init() {
	getCmd.Flags().StringVar(&getColour, "colour", "", "Only notes of this colour")
	getCmd.Flags().StringVar(&getContains, "contains", "", "Only notes containing the point X,Y")
	getCmd.Flags().StringVar(&getRefersTo, "refers-to", "", "Only notes whose message contains this text")
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "table", "Output format (table or json)")
	pinsCmd.Flags().StringVarP(&pinsOutput, "output", "o", "table", "Output format (table or json)")

	rootCmd.AddCommand(postCmd, getCmd, pinsCmd, pinCmd, unpinCmd, shakeCmd, clearCmd)
}

func parseCoords(xs, ys string) (int, int, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return 0, 0, printer.Error("invalid coordinate", fmt.Sprintf("'%s' is not a valid integer.", xs), nil)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return 0, 0, printer.Error("invalid coordinate", fmt.Sprintf("'%s' is not a valid integer.", ys), nil)
	}
	return x, y, nil
}

func parsePoint(s string) (board.Pin, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return board.Pin{}, printer.Error("invalid point", fmt.Sprintf("Expected X,Y but got %q.", s), []string{"Example: --contains 15,5"})
	}
	x, y, err := parseCoords(strings.TrimSpace(xs), strings.TrimSpace(ys))
	if err != nil {
		return board.Pin{}, err
	}
	return board.Pin{X: x, Y: y}, nil
}

func validateOutput(format string) error {
	if format != "table" && format != "json" {
		return printer.Error("invalid output format", fmt.Sprintf("Unknown format: %s", format), []string{"Valid formats: table, json"})
	}
	return nil
}
