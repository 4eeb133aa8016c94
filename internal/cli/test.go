package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gametunnel/internal/probe"
	"gametunnel/internal/storage/models"
	gterrors "gametunnel/pkg/errors"
)

var testCmd = &cobra.Command{
	Use:   "test [server]",
	Short: "Probe relay server latency once",
	Long: `Probe relay latency outside the monitor loop.

Test a single server by name or ID, or probe every configured server with
--all. Default strategy is TCP (connect handshake). Use --strategy udp for
servers running a UDP echo responder.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		strategyName, _ := cmd.Flags().GetString("strategy")
		workers, _ := cmd.Flags().GetInt64("workers")
		timeoutMS, _ := cmd.Flags().GetInt64("timeout")
		all, _ := cmd.Flags().GetBool("all")

		if !cmd.Flags().Changed("strategy") {
			strategyName = appInstance.Config.Monitor.Strategy
		}

		// Stored defaults beat the flag defaults but never an explicit flag.
		if !cmd.Flags().Changed("workers") {
			if val, err := appInstance.Storage.GetSetting(ctx, "probe_workers"); err == nil {
				if parsed, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
					workers = parsed
				}
			}
		}
		if !cmd.Flags().Changed("timeout") {
			if val, err := appInstance.Storage.GetSetting(ctx, "probe_timeout_ms"); err == nil {
				if parsed, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
					timeoutMS = parsed
				}
			}
		}

		strategy, err := probe.NewStrategy(strategyName)
		if err != nil {
			return err
		}

		prober := probe.NewProber(probe.ProberConfig{
			Workers:  workers,
			Timeout:  time.Duration(timeoutMS) * time.Millisecond,
			Strategy: strategy,
		})

		if all {
			return runBatchProbe(ctx, prober)
		}
		if len(args) == 0 {
			return fmt.Errorf("please specify a server name, or use --all")
		}
		return runSingleProbe(ctx, prober, args[0])
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <server>",
	Short: "Show probe history for a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		limit, _ := cmd.Flags().GetInt("limit")

		endpoint, err := resolveEndpoint(args[0])
		if err != nil {
			return err
		}

		history, err := appInstance.Storage.GetSampleHistory(ctx, endpoint.ID, limit)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			fmt.Printf("No probe history for %s\n", endpoint.Name)
			return nil
		}

		fmt.Printf("Probe History: %s (%s)\n", endpoint.Name, endpoint.Address())
		fmt.Println(strings.Repeat("═", 50))
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSTRATEGY\tLATENCY\tSTATUS")
		fmt.Fprintln(w, "----\t--------\t-------\t------")

		for _, entry := range history {
			latStr := "N/A"
			statusStr := "FAIL"
			if entry.Success && entry.LatencyMS != nil {
				latStr = fmt.Sprintf("%.1f ms", *entry.LatencyMS)
				statusStr = "OK"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				entry.ProbedAt.Format("2006-01-02 15:04:05"), entry.Strategy, latStr, statusStr)
		}
		return w.Flush()
	},
}

func resolveEndpoint(identifier string) (*models.Endpoint, error) {
	ep, err := appInstance.Registry.ByName(identifier)
	if err != nil {
		return nil, fmt.Errorf("server not found: %s", identifier)
	}
	return ep, nil
}

func runSingleProbe(ctx context.Context, prober *probe.Prober, identifier string) error {
	endpoint, err := resolveEndpoint(identifier)
	if err != nil {
		return err
	}

	fmt.Printf("Probing %s (%s)... ", endpoint.Name, endpoint.Address())

	outcome := prober.ProbeOne(ctx, endpoint)
	if outcome.Succeeded() {
		fmt.Printf("%.1f ms\n", outcome.LatencyMS)
	} else {
		fmt.Printf("FAILED (%v)\n", outcome.Err)
	}
	return nil
}

func runBatchProbe(ctx context.Context, prober *probe.Prober) error {
	endpoints := appInstance.Registry.All()
	if len(endpoints) == 0 {
		return gterrors.ErrNoEndpoints
	}

	fmt.Printf("Probing %d servers...\n\n", len(endpoints))

	start := time.Now()
	outcomes := prober.Run(ctx, endpoints)

	// Fastest first, failures at the bottom.
	sort.SliceStable(outcomes, func(i, j int) bool {
		if outcomes[i].Succeeded() != outcomes[j].Succeeded() {
			return outcomes[i].Succeeded()
		}
		return outcomes[i].LatencyMS < outcomes[j].LatencyMS
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tADDRESS\tLATENCY\tSTATUS")
	fmt.Fprintln(w, "-\t----\t-------\t-------\t------")

	succeeded := 0
	for i, outcome := range outcomes {
		latStr := "N/A"
		statusStr := "FAIL"
		if outcome.Succeeded() {
			latStr = fmt.Sprintf("%.1f ms", outcome.LatencyMS)
			statusStr = "OK"
			succeeded++
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			i+1, outcome.Endpoint.Name, outcome.Endpoint.Address(), latStr, statusStr)
	}
	w.Flush()

	fmt.Printf("\nSummary: %d probed, %d succeeded, %d failed (%.1fs)\n",
		len(outcomes), succeeded, len(outcomes)-succeeded, time.Since(start).Seconds())
	return nil
}

func init() {
	testCmd.Flags().StringP("strategy", "s", "tcp", "probe strategy (tcp, udp)")
	testCmd.Flags().Int64P("workers", "w", 10, "number of concurrent workers")
	testCmd.Flags().Int64P("timeout", "t", 5000, "per-probe timeout in milliseconds")
	testCmd.Flags().Bool("all", false, "probe all configured servers")

	testCmd.RegisterFlagCompletionFunc("strategy", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"tcp", "udp"}, cobra.ShellCompDirectiveNoFileComp
	})

	historyCmd.Flags().IntP("limit", "n", 20, "number of history entries")

	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(historyCmd)
}
