package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gametunnel/internal/dashboard"
	"gametunnel/internal/monitor"
	"gametunnel/internal/sessions"
	"gametunnel/internal/stats"
	gterrors "gametunnel/pkg/errors"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the relay monitor and dashboard service",
	Long: `Run the monitoring service: periodic probe rounds, relay selection,
the stats feed and the dashboard HTTP/websocket API. Stops on SIGINT or
SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appInstance.Registry.Len() == 0 {
			return gterrors.ErrNoEndpoints
		}
		noDashboard, _ := cmd.Flags().GetBool("no-dashboard")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		m, err := monitor.New(appInstance.Registry, appInstance.Config.Monitor, appInstance.Storage, appInstance.Logger)
		if err != nil {
			return err
		}

		sessionReg := sessions.NewRegistry(m.ActiveEndpointID, appInstance.Storage, appInstance.Logger)
		aggregator := stats.NewAggregator(m, sessionReg)
		broadcaster := stats.NewBroadcaster(aggregator,
			appInstance.Config.Monitor.PublishInterval.Duration(), appInstance.Logger)

		if err := m.Start(ctx); err != nil {
			return err
		}
		defer m.Stop()

		broadcaster.Start(ctx)
		defer broadcaster.Stop()

		if !noDashboard {
			srv := dashboard.New(appInstance.Config, broadcaster, sessionReg, appInstance.Storage, appInstance.Logger)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Stop(shutdownCtx)
			}()
			fmt.Printf("Dashboard listening on http://%s\n", srv.Addr())
		}

		fmt.Printf("Monitoring %d servers every %s. Ctrl+C to stop.\n",
			appInstance.Registry.Len(), appInstance.Config.Monitor.ProbeInterval.Duration())

		<-ctx.Done()
		fmt.Println("\nShutting down...")
		return nil
	},
}

func init() {
	monitorCmd.Flags().Bool("no-dashboard", false, "disable the dashboard HTTP server")
	rootCmd.AddCommand(monitorCmd)
}
