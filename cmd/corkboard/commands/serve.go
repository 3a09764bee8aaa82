package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyluth/corkboard/internal/config"
	"github.com/dyluth/corkboard/internal/eventbus"
	"github.com/dyluth/corkboard/internal/logging"
	"github.com/dyluth/corkboard/internal/printer"
	"github.com/dyluth/corkboard/internal/server"
	"github.com/dyluth/corkboard/pkg/board"
)

var (
	serveConfigPath string
	serveRedisURL   string
	serveInstance   string
	serveHealthAddr string
	serveLogLevel   string
	serveLogFormat  string
)

var serveCmd = &cobra.Command{
	Use:   "serve [port board_w board_h note_w note_h colour...]",
	Short: "Run a corkboard server",
	Long: `Run a corkboard server.

The board is configured either positionally or from a corkboard.yml file.
Positional arguments take precedence over the file; flags override both.

Examples:
  # 200x100 board with 20x10 notes in three colours on port 4321
  corkboard serve 4321 200 100 20 10 red white green

  # Use ./corkboard.yml
  corkboard serve

  # Publish board events to Redis and expose /healthz
  corkboard serve --config prod.yml --redis-url redis://localhost:6379 --health-addr :8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", config.DefaultFile, "Path to corkboard.yml (ignored when positional arguments are given)")
	serveCmd.Flags().StringVar(&serveRedisURL, "redis-url", "", "Redis URL for board events (overrides config)")
	serveCmd.Flags().StringVar(&serveInstance, "instance", "", "Event channel namespace (overrides config)")
	serveCmd.Flags().StringVar(&serveHealthAddr, "health-addr", "", "Address for the /healthz endpoint (overrides config)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "", "Log format: text or json (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging())

	var opts []board.Option
	var bus *eventbus.Client
	var publisher *eventbus.Publisher
	if cfg.Events.Enabled() {
		bus, err = eventbus.NewClientFromURL(cfg.Events.RedisURL, cfg.Events.Instance)
		if err != nil {
			return printer.Error("invalid events configuration", err.Error(), nil)
		}
		defer bus.Close()

		pingCtx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		if err := bus.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, events will be dropped until it recovers", "url", cfg.Events.RedisURL, "error", err)
		}
		cancel()

		publisher = eventbus.NewPublisher(bus, logger, eventbus.DefaultQueueSize)
		opts = append(opts, board.WithNotifier(publisher.Notify))
	}

	b, err := board.New(cfg.Board, opts...)
	if err != nil {
		return printer.Error("invalid board configuration", err.Error(), nil)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisherDone := make(chan struct{})
	if publisher != nil {
		go func() {
			defer close(publisherDone)
			publisher.Run(context.Background())
		}()
	} else {
		close(publisherDone)
	}

	srv := server.New(b, logger)

	var health *server.HealthServer
	if cfg.Server.HealthAddr != "" {
		var pinger server.Pinger
		if bus != nil {
			pinger = bus
		}
		health = server.NewHealthServer(srv, pinger, logger)
		if err := health.Start(cfg.Server.HealthAddr); err != nil {
			return printer.ErrorWithContext(
				"health server failed to start",
				err.Error(),
				map[string]string{"Address": cfg.Server.HealthAddr},
				[]string{"Choose a free port with --health-addr"},
			)
		}
	}

	logger.Info("starting corkboard",
		"listen", cfg.Server.Listen,
		"board", fmt.Sprintf("%dx%d", cfg.Board.Width, cfg.Board.Height),
		"note", fmt.Sprintf("%dx%d", cfg.Board.NoteWidth, cfg.Board.NoteHeight),
		"colours", cfg.Board.Colours,
		"events", cfg.Events.Enabled(),
	)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(cfg.Server.Listen) }()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, server.ErrServerClosed) {
			runErr = printer.ErrorWithContext(
				"server failed",
				err.Error(),
				map[string]string{"Listen": cfg.Server.Listen},
				[]string{"Choose a free port, e.g.:\n  corkboard serve 4322 ..."},
			)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", "error", err)
	}
	if health != nil {
		if err := health.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown incomplete", "error", err)
		}
	}
	if publisher != nil {
		publisher.Close()
		<-publisherDone
		stats := publisher.Stats()
		logger.Info("event publisher stopped", "published", stats.Published, "failed", stats.Failed, "dropped", stats.Dropped)
	}

	return runErr
}

// loadServeConfig resolves positional arguments or the config file, then
// applies flag overrides and revalidates.
func loadServeConfig(cmd *cobra.Command, args []string) (*config.CorkboardConfig, error) {
	var cfg *config.CorkboardConfig
	var err error

	if len(args) > 0 {
		cfg, err = config.FromArgs(args)
		if err != nil {
			return nil, printer.Error(
				"invalid arguments",
				err.Error(),
				[]string{"Usage:\n  corkboard serve <port> <board_w> <board_h> <note_w> <note_h> <colour1> ... <colourN>"},
			)
		}
	} else {
		cfg, err = config.Load(serveConfigPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, printer.ErrorWithContext(
					"no board configuration",
					fmt.Sprintf("%s not found and no positional arguments given.", serveConfigPath),
					nil,
					[]string{
						"Pass the board on the command line:\n  corkboard serve 4321 200 100 20 10 red white",
						"Create a corkboard.yml or point at one with --config",
					},
				)
			}
			return nil, printer.ErrorWithContext("invalid configuration", err.Error(), map[string]string{"File": serveConfigPath}, nil)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("redis-url") || flags.Changed("instance") {
		if cfg.Events == nil {
			cfg.Events = &config.EventsConfig{}
		}
		if flags.Changed("redis-url") {
			cfg.Events.RedisURL = serveRedisURL
		}
		if flags.Changed("instance") {
			cfg.Events.Instance = serveInstance
		}
	}
	if flags.Changed("health-addr") {
		cfg.Server.HealthAddr = serveHealthAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = serveLogLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = serveLogFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}
	return cfg, nil
}
