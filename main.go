// Command voice-server answers and places phone calls, streaming caller audio to a
// speech-to-text provider and speaking language-model replies back onto the call.
//
//	voice-server serve
//	voice-server call --to +15551234567
//	voice-server events
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voice-server",
		Short:         "Phone call streaming server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(buildServeCmd(), buildCallCmd(), buildEventsCmd())
	return cmd
}
