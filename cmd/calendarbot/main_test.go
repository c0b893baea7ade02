package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandLayout(t *testing.T) {
	t.Parallel()

	root := newRootCommand()
	for _, name := range []string{"serve", "extract", "remind"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, defaultConfigPath, flag.DefValue)
}

func TestRunFailures(t *testing.T) {
	t.Parallel()

	invalid := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("logger:\n  level: loud\n"), 0o600))
	tests := []struct {
		name string
		args []string
	}{
		{name: "extract without file", args: []string{"extract"}},
		{name: "serve with extra args", args: []string{"serve", "now"}},
		{name: "invalid config", args: []string{"--config", invalid, "remind"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, 1, run(context.Background(), tt.args))
		})
	}
}
