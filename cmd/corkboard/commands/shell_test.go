package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/corkboard/internal/testutil"
)

func TestShell_SessionScript(t *testing.T) {
	addr := testutil.StartServer(t).Addr
	rootCmd.SetIn(strings.NewReader("POST 0 0 red hi there\nPIN 5 5\nGET\nfrobnicate\nDISCONNECT\nGET\n"))

	out, err := execute(t, "--addr", addr, "shell")
	require.NoError(t, err)

	assert.Contains(t, out, "HELLO 200 100 20 10 COLOURS 1 red")
	assert.Contains(t, out, "OK NOTE 1")
	assert.Contains(t, out, "OK 1\nNOTE 1 0 0 red PINNED hi there\nEND")
	assert.Contains(t, out, "ERROR INVALID_FORMAT Unknown command: FROBNICATE")
	// Input after DISCONNECT is never sent.
	assert.Equal(t, 1, strings.Count(out, "OK 1\n"))
}

func TestShell_EndOfInputDisconnects(t *testing.T) {
	addr := testutil.StartServer(t).Addr
	rootCmd.SetIn(strings.NewReader("SHAKE\n"))

	out, err := execute(t, "--addr", addr, "shell")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
}
