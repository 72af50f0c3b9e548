package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	storeDir   string
	outputJSON bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "latencysim",
	Short: "Latency tuner simulator",
	Long: `latencysim - drive the adaptive latency tuner through simulated
streaming sessions.

A scenario YAML file describes the sender clock drift, the packet
cadence and the arrival jitter; the simulator runs the receive path on
a virtual clock and shows how the tuner converges.

Examples:
  # Run a scenario and print a summary
  latencysim run -f scenario.yaml

  # Persist reports for later inspection
  latencysim run -f scenario.yaml --store ./reports

  # Watch reports live over websocket
  latencysim run -f scenario.yaml --listen :8080

  # Inspect stored sessions
  latencysim sessions --store ./reports
  latencysim replay <session-id> --store ./reports --json
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeDir, "store", "", "report store directory")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(replayCmd)
}
