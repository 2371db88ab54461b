// Command coachctl inspects stored sessions, replays transcripts through the
// coaching engine, streams audio files to a running gateway and probes its
// health.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/echomind/coach-gateway/internal/config"
	"github.com/echomind/coach-gateway/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	storeCfg := &config.StoreConfig{}

	root := &cobra.Command{
		Use:           "coachctl",
		Short:         "Interview coaching gateway tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			observability.InitLogger(logLevel, true)

			// Flags win over the environment
			env, err := config.LoadStore()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("driver") {
				storeCfg.StoreDriver = env.StoreDriver
			}
			if !cmd.Flags().Changed("dsn") {
				storeCfg.StoreDSN = env.StoreDSN
			}
			return storeCfg.Validate()
		},
	}
	root.PersistentFlags().StringVar(&storeCfg.StoreDriver, "driver", "", "store driver: sqlite|postgres (default $STORE_DRIVER)")
	root.PersistentFlags().StringVar(&storeCfg.StoreDSN, "dsn", "", "store file path or DSN (default $STORE_DSN)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug|info|warn|error")

	root.AddCommand(newSessionsCmd(storeCfg))
	root.AddCommand(newReplayCmd())
	root.AddCommand(newStreamCmd())
	root.AddCommand(newProbeCmd())
	return root
}
