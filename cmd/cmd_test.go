package cmd

import (
	"flag"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestSetupLoggingUnwritableFile(t *testing.T) {
	set := flag.NewFlagSet("archiver", flag.ContinueOnError)
	set.Bool("debug", false, "")
	set.String("log-file", filepath.Join(t.TempDir(), "missing", "dir", "archiver.log"), "")

	err := setupLogging(cli.NewContext(app, set, nil))
	require.Error(t, err)

	var exit cli.ExitCoder
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.ExitCode())
	assert.Contains(t, err.Error(), "Error setting up logging")
}
