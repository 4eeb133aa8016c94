package cli

import (
	"context"

	"github.com/spf13/cobra"

	"gametunnel/internal/monitor"
	"gametunnel/internal/sessions"
	"gametunnel/internal/stats"
	"gametunnel/internal/tui"
	gterrors "gametunnel/pkg/errors"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive status view",
	RunE: func(cmd *cobra.Command, args []string) error {
		if appInstance.Registry.Len() == 0 {
			return gterrors.ErrNoEndpoints
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

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

		_, err = tui.NewProgram(broadcaster).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
