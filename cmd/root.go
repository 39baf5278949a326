// Package cmd implements the sinr command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sinr",
	Short: "sinr - namespaced knowledge retrieval over pgvector",
	Long: `sinr ingests documents into a hierarchical chunk store and retrieves
the most relevant passages for a query.

Documents are split into large parent chunks for context and small
child chunks for precise matching. Search runs over the child chunks
and returns the surrounding parent text, descending a threshold ladder
until something matches.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
