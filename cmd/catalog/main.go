package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
	driver     string
	fileDir    string
	metrics    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse popular and trending titles",
		Long: `catalog fetches the popular and trending lists.

The trending list is served stale-while-revalidate: the snapshot kept in
the configured store is shown first, then refreshed from the network and
written back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/catalog/config.yaml)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&flags.driver, "driver", "", "snapshot store driver (memory, file, redis, sql, nats, dynamodb, null)")
	pf.StringVar(&flags.fileDir, "file-dir", "", "directory for the file driver")
	pf.BoolVar(&flags.metrics, "metrics", false, "print operation metrics to stderr when done")

	rootCmd.AddCommand(
		trendingCmd(flags),
		popularCmd(flags),
		snapshotCmd(flags),
		versionCmd(),
	)
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "catalog %s (%s)\n", version, commit)
		},
	}
}
