package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulseframe/netaudio/pkg/report"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions in the report store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ids, err := st.Sessions()
		if err != nil {
			return err
		}
		if outputJSON {
			out, err := json.Marshal(ids)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Print the stored reports of one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		n := 0
		for r, err := range st.Replay(args[0]) {
			if err != nil {
				return err
			}
			if outputJSON {
				out, err := json.Marshal(r)
				if err != nil {
					return err
				}
				fmt.Println(string(out))
			} else {
				fmt.Println(renderReport(r))
			}
			n++
		}
		if n == 0 {
			return fmt.Errorf("no reports for session %s", args[0])
		}
		return nil
	},
}

func openStore() (*report.Store, error) {
	if storeDir == "" {
		return nil, fmt.Errorf("report store directory is required, use --store flag")
	}
	return report.OpenStore(report.StoreOptions{Dir: storeDir})
}
