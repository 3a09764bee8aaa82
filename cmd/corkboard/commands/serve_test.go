package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/corkboard/internal/config"
)

// newServeFlags returns a command carrying serve's flags so that Changed
// state starts clean for each test.
func newServeFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	serveConfigPath = config.DefaultFile
	serveRedisURL, serveInstance, serveHealthAddr, serveLogLevel, serveLogFormat = "", "", "", "", ""

	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().StringVarP(&serveConfigPath, "config", "c", config.DefaultFile, "")
	cmd.Flags().StringVar(&serveRedisURL, "redis-url", "", "")
	cmd.Flags().StringVar(&serveInstance, "instance", "", "")
	cmd.Flags().StringVar(&serveHealthAddr, "health-addr", "", "")
	cmd.Flags().StringVar(&serveLogLevel, "log-level", "", "")
	cmd.Flags().StringVar(&serveLogFormat, "log-format", "", "")
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestLoadServeConfig_PositionalArgs(t *testing.T) {
	cmd := newServeFlags(t)

	cfg, err := loadServeConfig(cmd, []string{"4000", "200", "100", "20", "10", "red", "white", "red"})
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Server.Listen)
	assert.Equal(t, 200, cfg.Board.Width)
	assert.Equal(t, 100, cfg.Board.Height)
	assert.Equal(t, []string{"red", "white"}, cfg.Board.Colours)
	assert.False(t, cfg.Events.Enabled())
}

func TestLoadServeConfig_FlagOverrides(t *testing.T) {
	cmd := newServeFlags(t,
		"--redis-url", "redis://localhost:6379/2",
		"--instance", "prod",
		"--health-addr", ":8080",
		"--log-level", "debug",
		"--log-format", "json",
	)

	cfg, err := loadServeConfig(cmd, []string{"4000", "200", "100", "20", "10", "red"})
	require.NoError(t, err)

	require.True(t, cfg.Events.Enabled())
	assert.Equal(t, "redis://localhost:6379/2", cfg.Events.RedisURL)
	assert.Equal(t, "prod", cfg.Events.Instance)
	assert.Equal(t, ":8080", cfg.Server.HealthAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadServeConfig_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corkboard.yml")
	require.NoError(t, os.WriteFile(path, []byte(`version: "1.0"
board:
  width: 300
  height: 200
  note_width: 30
  note_height: 20
  colours: [yellow]
server:
  listen: ":5000"
events:
  redis_url: redis://localhost:6379
`), 0644))

	cmd := newServeFlags(t, "--config", path, "--instance", "staging")
	cfg, err := loadServeConfig(cmd, nil)
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Listen)
	assert.Equal(t, []string{"yellow"}, cfg.Board.Colours)
	assert.Equal(t, "staging", cfg.Events.Instance)
}

func TestLoadServeConfig_Errors(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		args  []string
		want  string
	}{
		{"too few args", nil, []string{"4000", "200"}, "invalid arguments"},
		{"bad dimension", nil, []string{"4000", "wide", "100", "20", "10", "red"}, "invalid arguments"},
		{"missing file", []string{"--config", filepath.Join(os.TempDir(), "does-not-exist.yml")}, nil, "no board configuration"},
		{"bad override", []string{"--log-level", "loud"}, []string{"4000", "200", "100", "20", "10", "red"}, "invalid configuration"},
		{"health clashes with listen", []string{"--health-addr", ":4000"}, []string{"4000", "200", "100", "20", "10", "red"}, "invalid configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newServeFlags(t, tt.flags...)
			_, err := loadServeConfig(cmd, tt.args)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestLoadServeConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corkboard.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"2.0\"\n"), 0644))

	cmd := newServeFlags(t, "--config", path)
	_, err := loadServeConfig(cmd, nil)
	require.Error(t, err)
	assert.Equal(t, "invalid configuration", err.Error())
}
