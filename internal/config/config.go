package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/dyluth/corkboard/internal/logging"
	"github.com/dyluth/corkboard/pkg/board"
)

// Defaults applied by Validate when a field is omitted.
const (
	DefaultFile     = "corkboard.yml"
	DefaultPort     = 4321
	DefaultListen   = ":4321"
	DefaultInstance = "default"
)

// CorkboardConfig represents the top-level corkboard.yml configuration
type CorkboardConfig struct {
	Version string        `yaml:"version"`
	Board   board.Config  `yaml:"board"`
	Server  ServerConfig  `yaml:"server"`
	Events  *EventsConfig `yaml:"events,omitempty"` // nil disables the event bus
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig specifies where the server listens
type ServerConfig struct {
	Listen     string `yaml:"listen"`                // TCP address for the line protocol
	HealthAddr string `yaml:"health_addr,omitempty"` // HTTP address for /healthz, empty disables
}

// EventsConfig specifies the Redis event bus
type EventsConfig struct {
	RedisURL string `yaml:"redis_url"` // e.g. redis://localhost:6379/0, empty disables
	Instance string `yaml:"instance"`  // Namespaces the event channel
}

// LogConfig specifies structured logging
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Enabled reports whether board events should be published.
func (e *EventsConfig) Enabled() bool {
	return e != nil && e.RedisURL != ""
}

// Validate performs strict validation on the configuration and fills in
// defaults for omitted optional fields.
func (c *CorkboardConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	c.Board.Colours = dedupe(c.Board.Colours)
	if err := c.Board.Validate(); err != nil {
		return fmt.Errorf("board: %w", err)
	}

	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if err := validateAddr(c.Server.Listen); err != nil {
		return fmt.Errorf("server.listen: %w", err)
	}
	if c.Server.HealthAddr != "" {
		if err := validateAddr(c.Server.HealthAddr); err != nil {
			return fmt.Errorf("server.health_addr: %w", err)
		}
		if c.Server.HealthAddr == c.Server.Listen {
			return fmt.Errorf("server.health_addr must differ from server.listen (%s)", c.Server.Listen)
		}
	}

	if c.Events.Enabled() {
		if _, err := redis.ParseURL(c.Events.RedisURL); err != nil {
			return fmt.Errorf("events.redis_url: %w", err)
		}
		if c.Events.Instance == "" {
			c.Events.Instance = DefaultInstance
		}
		if strings.ContainsAny(c.Events.Instance, " \t:") {
			return fmt.Errorf("events.instance %q cannot contain whitespace or ':'", c.Events.Instance)
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}

	return nil
}

// Logging converts the log section to a logging.Config. Call after Validate.
func (c *CorkboardConfig) Logging() logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	format, _ := logging.ParseFormat(c.Log.Format)
	return logging.Config{Level: level, Format: format}
}

// Load reads and validates corkboard.yml from the specified path
func Load(path string) (*CorkboardConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config CorkboardConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// FromArgs builds a configuration from the positional form
// <port> <board_w> <board_h> <note_w> <note_h> <colour1> ... <colourN>.
func FromArgs(args []string) (*CorkboardConfig, error) {
	if len(args) < 6 {
		return nil, fmt.Errorf("expected <port> <board_w> <board_h> <note_w> <note_h> <colour>..., got %d arguments", len(args))
	}

	names := []string{"port", "board_w", "board_h", "note_w", "note_h"}
	nums := make([]int, len(names))
	for i, name := range names {
		n, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer, got %q", name, args[i])
		}
		nums[i] = n
	}

	config := &CorkboardConfig{
		Version: "1.0",
		Board: board.Config{
			Width:      nums[1],
			Height:     nums[2],
			NoteWidth:  nums[3],
			NoteHeight: nums[4],
			Colours:    append([]string(nil), args[5:]...),
		},
		Server: ServerConfig{Listen: ":" + strconv.Itoa(nums[0])},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func validateAddr(addr string) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %q", portStr)
	}
	return nil
}

func dedupe(colours []string) []string {
	seen := make(map[string]bool, len(colours))
	out := make([]string, 0, len(colours))
	for _, c := range colours {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
