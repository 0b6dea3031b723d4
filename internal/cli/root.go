// Package cli handles the command-line interface logic
// using the Cobra library.
package cli

import (
	"github.com/BartekS5/restsync/internal/config"
	"github.com/BartekS5/restsync/pkg/logger"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "restsync",
		Short: "restsync - declarative extraction from paginated REST APIs",
		Long: `restsync reads records from paginated, rate-limited REST APIs described by a
declarative connector definition and tracks incremental cursors across runs.
Records and checkpoints are written as JSON lines or upserted into MongoDB.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			file, level := config.LogSettings()
			return logger.InitLogger(file, logger.ParseLevel(level))
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(NewSyncCmd(), NewCheckCmd(), NewStateCmd())

	return rootCmd
}
