package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyluth/corkboard/internal/printer"
	"github.com/dyluth/corkboard/pkg/client"
	"github.com/dyluth/corkboard/pkg/protocol"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive protocol session",
	Long: `Open an interactive session and type protocol requests directly.

Each line is sent as-is and the raw reply is printed. The session ends on
DISCONNECT or end of input.

Example:
  $ corkboard shell
  HELLO 200 100 20 10 COLOURS 2 red white
  > POST 0 0 red hello
  OK NOTE 1`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	dialCtx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	c, err := client.Dial(dialCtx, serverAddr)
	cancel()
	if err != nil {
		return printer.ErrorWithContext(
			"connection failed",
			fmt.Sprintf("Could not connect to a corkboard server: %v", err),
			map[string]string{"Address": serverAddr},
			[]string{"Start a server:\n  corkboard serve 4321 200 100 20 10 red white"},
		)
	}
	defer c.Close()

	printer.Info("Connected to %s. Type DISCONNECT or press Ctrl+D to leave.\n", serverAddr)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, c.Handshake().String())

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		resp, err := c.Send(ctx, line)
		cancel()
		if err != nil {
			fmt.Fprintln(out)
			printer.Warning("Connection to %s lost\n", serverAddr)
			return fmt.Errorf("connection lost: %w", err)
		}

		for _, l := range protocol.Render(resp) {
			fmt.Fprintln(out, l)
		}

		if _, ok := resp.(protocol.OK); ok && strings.EqualFold(line, "DISCONNECT") {
			return nil
		}
	}
	fmt.Fprintln(out)

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()
	return c.Disconnect(ctx)
}
