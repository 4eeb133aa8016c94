package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured relay servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoints := appInstance.Registry.All()
		if len(endpoints) == 0 {
			fmt.Println("No servers configured. Add a 'servers:' section to", appInstance.ConfigPath)
			return nil
		}
		ctx := context.Background()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tADDRESS\tREGION\tLOCATION\tLAST PROBE")
		fmt.Fprintln(w, "--\t----\t-------\t------\t--------\t----------")
		for _, ep := range endpoints {
			lastStr := "-"
			if sample, err := appInstance.Storage.GetLatestSample(ctx, ep.ID); err == nil && sample != nil {
				when := sample.ProbedAt.Format("2006-01-02 15:04")
				if sample.Success && sample.LatencyMS != nil {
					lastStr = fmt.Sprintf("%.1f ms (%s)", *sample.LatencyMS, when)
				} else {
					lastStr = fmt.Sprintf("failed (%s)", when)
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				ep.ID, ep.Name, ep.Address(), ep.Region, ep.Location, lastStr)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(serversCmd)
}
