package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubcommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "search", "documents", "migrate", "version"} {
		assert.True(t, names[want], "command %q not registered", want)
	}
}

func TestIngestRequiresSources(t *testing.T) {
	err := runIngest(ingestCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to ingest")
}

func TestNamespaceFlag(t *testing.T) {
	for _, c := range []string{"ingest", "search", "documents"} {
		cmd, _, err := rootCmd.Find([]string{c})
		require.NoError(t, err)
		require.NotNil(t, cmd.Flags().Lookup("namespace"), "%s must expose --namespace", c)
	}
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n  b", indent("a\nb", "  "))
}
