package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var root = &cobra.Command{
		Use:          "newsgpt",
		Short:        "Chat with a news assistant, export results and mail them out",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "config file (default searches ./config and .)")

	root.AddCommand(serveCMD(), chatCMD())
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
