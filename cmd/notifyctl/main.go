package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/notify-service/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool
	root := &cobra.Command{
		Use:           "notifyctl",
		Short:         "Listen to and emit notify-hub events",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logger.Config{
				Service: "notifyctl",
				Env:     logger.EnvDev,
				Backend: logger.BackendStd,
				Debug:   debug,
				Output:  cmd.ErrOrStderr(),
			})
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging")

	root.AddCommand(newListenCmd(), newEmitCmd(), newTokenCmd())
	return root
}
