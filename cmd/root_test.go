package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"], "serve command should be registered")
	assert.True(t, names["version"], "version command should be registered")
}

func TestServeCommandFlags(t *testing.T) {
	require.NotNil(t, serveCmd.Flags().Lookup("debug"))
	require.NotNil(t, serveCmd.Flags().Lookup("config"))
}

func TestServeRejectsArgs(t *testing.T) {
	err := serveCmd.Args(serveCmd, []string{"unexpected"})
	assert.Error(t, err)
}
