package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pulseframe/netaudio/pkg/latency"
	"github.com/pulseframe/netaudio/pkg/report"
)

var (
	scenarioFile string
	listenAddr   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a streaming session",
	Long: `Run a scenario file through the full receive path: incoming queue,
metrics collector, latency tuner and resampler, all on a virtual clock.

Example scenario:

  duration: 30s
  packet_interval: 10ms
  drift_ppm: 200
  jitter: 2ms
  latency:
    target_latency: 200ms
    latency_tolerance: 100ms`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if scenarioFile == "" {
			return fmt.Errorf("scenario file is required, use -f flag")
		}
		sc, err := loadScenario(scenarioFile)
		if err != nil {
			return err
		}

		sessionID := uuid.NewString()
		var sinks []latency.Reporter
		if verbose {
			sinks = append(sinks, report.NewSlogSink(nil))
		}
		if storeDir != "" {
			st, err := report.OpenStore(report.StoreOptions{Dir: storeDir})
			if err != nil {
				return err
			}
			defer st.Close()
			sinks = append(sinks, st)
		}
		if listenAddr != "" {
			sink := report.NewStreamSink(0)
			defer sink.Close()
			sinks = append(sinks, sink)
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/reports", sink)
				if err := http.ListenAndServe(listenAddr, mux); err != nil {
					slog.Error("report server stopped", "err", err)
				}
			}()
		}

		sum, err := runSimulation(sc, sessionID, report.Multi(sinks...))
		if err != nil {
			return err
		}

		if outputJSON {
			out, err := json.MarshalIndent(sum, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		fmt.Println(renderSummary(sum))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&scenarioFile, "file", "f", "", "scenario file (YAML)")
	runCmd.Flags().StringVar(&listenAddr, "listen", "", "serve live reports over websocket at this address")
}
