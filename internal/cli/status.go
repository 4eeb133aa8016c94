package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gametunnel/internal/monitor"
	gterrors "gametunnel/pkg/errors"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe all servers and show the current selection",
	Long: `Run a few synchronized probe rounds and print the resulting server
states and the selected relay. Runs exactly enough rounds for a healthy
server to reach Online.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appInstance.Registry.Len() == 0 {
			return gterrors.ErrNoEndpoints
		}

		m, err := monitor.New(appInstance.Registry, appInstance.Config.Monitor, appInstance.Storage, appInstance.Logger)
		if err != nil {
			return err
		}

		ctx := context.Background()
		rounds := appInstance.Config.Monitor.SuccessesUp
		if rounds < 1 {
			rounds = 1
		}
		fmt.Printf("Running %d probe rounds...\n\n", rounds)
		for i := 0; i < rounds; i++ {
			m.RunRound(ctx)
		}

		view := m.View()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SERVER\tADDRESS\tSTATUS\tLATENCY\tSCORE")
		fmt.Fprintln(w, "------\t-------\t------\t-------\t-----")
		for _, ev := range view.Endpoints {
			latStr := "N/A"
			if ev.State.HasLatency() {
				latStr = fmt.Sprintf("%.1f ms", ev.State.EWMALatencyMS)
			}
			scoreStr := "-"
			if ev.State.Status.Candidate() {
				scoreStr = fmt.Sprintf("%.1f", ev.State.Score)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				ev.Endpoint.Name, ev.Endpoint.Address(), ev.State.Status, latStr, scoreStr)
		}
		w.Flush()

		fmt.Println()
		if view.Selection.None() {
			fmt.Println("Selected: none (no eligible server)")
		} else {
			fmt.Printf("Selected: %s\n", view.Selection.ActiveEndpointID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
