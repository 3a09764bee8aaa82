package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/corkboard/internal/printer"
	"github.com/dyluth/corkboard/pkg/client"
)

var (
	version string
	commit  string
	date    string

	serverAddr     string
	requestTimeout time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "corkboard",
	Short: "Corkboard - a shared bulletin board over a line protocol",
	Long: `Corkboard is a shared bulletin board served over a line-oriented TCP protocol.

Clients post fixed-size notes at board coordinates, pin them in place,
query them by colour, position, or text, and shake loose everything unpinned.
Every change can be streamed to Redis for live monitoring.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "addr", "a", "localhost:4321", "Corkboard server address")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 5*time.Second, "Timeout for connecting and for each request")
}

// withClient connects to --addr, runs fn, and disconnects.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	c, err := client.Dial(ctx, serverAddr)
	if err != nil {
		return printer.ErrorWithContext(
			"connection failed",
			fmt.Sprintf("Could not connect to a corkboard server: %v", err),
			map[string]string{"Address": serverAddr},
			[]string{
				"Start a server:\n  corkboard serve 4321 200 100 20 10 red white",
				"Point at a different server:\n  corkboard --addr host:port ...",
			},
		)
	}
	defer c.Close()

	if err := fn(ctx, c); err != nil {
		return serverFailure(err)
	}
	return c.Disconnect(ctx)
}

// serverFailure prints board validation failures in the printer's format.
func serverFailure(err error) error {
	var se *client.ServerError
	if errors.As(err, &se) {
		return printer.Error(se.Code, se.Description, nil)
	}
	return err
}
