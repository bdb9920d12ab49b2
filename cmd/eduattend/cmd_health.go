package main

import (
	"context"
	"errors"
	"fmt"

	"eduattend/internal/api"
	"eduattend/internal/health"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var healthWatch bool

// runHealth probes the backend once, or keeps polling with --watch.
func runHealth(cmd *cobra.Command, args []string) error {
	client := api.NewClient(appCfg)
	out := cmd.OutOrStdout()

	if !healthWatch {
		ctx, cancel := context.WithTimeout(context.Background(), appCfg.GetProbeTimeout())
		defer cancel()
		online, err := client.Health(ctx)
		if err != nil {
			logger.Debug("Health probe failed", zap.Error(err))
		}
		if !online {
			fmt.Fprintf(out, "%s: offline\n", client.BaseURL())
			return fmt.Errorf("attendance agent at %s is offline", client.BaseURL())
		}
		fmt.Fprintf(out, "%s: online\n", client.BaseURL())
		return nil
	}

	ctx, cancel := signalContext(timeout)
	defer cancel()

	mon := health.NewMonitor(appCfg.GetPollInterval(), appCfg.GetRetryInterval())
	poller := health.NewPoller(client, mon)

	var last health.State = -1
	err := poller.Run(ctx, func(st health.Status) {
		if st.State == last {
			return
		}
		last = st.State
		fmt.Fprintf(out, "%s %s: %s\n", st.LastChecked.Format("15:04:05"), client.BaseURL(), st.State)
		logger.Info("Health changed",
			zap.String("server", client.BaseURL()),
			zap.String("state", st.State.String()))
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
