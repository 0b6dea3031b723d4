package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Output targets for records.
const (
	OutputJSONL = "jsonl"
	OutputMongo = "mongo"
)

type SyncOptions struct {
	DefinitionFile string
	ConfigFile     string
	StateFile      string
	Streams        []string
	Output         string
	DryRun         bool
	Workers        int
}

type StateOptions struct {
	StateFile string
	Stream    string
}

func NewSyncCmd() *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync streams declared in a connector definition",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSync(ctx, opts, c.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.DefinitionFile, "definition", "d", "", "Path to the connector definition (.json, .yaml or .cue)")
	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to the user configuration (.json or .yaml)")
	cmd.Flags().StringVar(&opts.StateFile, "state", "", "Read and write state in this JSON file instead of STATE_BACKEND")
	cmd.Flags().StringSliceVar(&opts.Streams, "streams", nil, "Streams to sync (default: all)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", OutputJSONL, "Record output: jsonl or mongo")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Fetch pages but write neither records nor state")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Streams synced concurrently (default: SYNC_WORKERS)")

	cmd.MarkFlagRequired("definition")

	return cmd
}

func NewCheckCmd() *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a connector definition without sending requests",
		RunE: func(c *cobra.Command, args []string) error {
			return runCheck(opts, c.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.DefinitionFile, "definition", "d", "", "Path to the connector definition")
	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Path to the user configuration")
	cmd.Flags().StringSliceVar(&opts.Streams, "streams", nil, "Streams to check (default: all)")
	cmd.MarkFlagRequired("definition")

	return cmd
}

func NewStateCmd() *cobra.Command {
	opts := &StateOptions{}

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset saved checkpoints",
	}
	cmd.PersistentFlags().StringVar(&opts.StateFile, "state", "", "Use this JSON state file instead of STATE_BACKEND")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the saved state as JSON",
		RunE: func(c *cobra.Command, args []string) error {
			return runStateShow(c.Context(), opts, c.OutOrStdout())
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget the saved state of one stream, or of all streams",
		RunE: func(c *cobra.Command, args []string) error {
			return runStateReset(c.Context(), opts, c.OutOrStdout())
		},
	}
	reset.Flags().StringVar(&opts.Stream, "stream", "", "Stream to reset (default: all)")

	cmd.AddCommand(show, reset)
	return cmd
}
