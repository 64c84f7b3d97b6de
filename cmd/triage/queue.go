package main

import (
	"fmt"
	"log/slog"

	"github.com/hsdd/triage/internal/cli"
	"github.com/spf13/cobra"
)

func queueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List the flagged predictions awaiting review",
		Long: `Fetch and display the portal's flagged queue without starting a
review session. Items appear in the portal's triage order.`,
		RunE: runQueue,
	}
}

func runQueue(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := newGatewayClient()
	if err != nil {
		return err
	}

	items, err := client.FetchQueue(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch flagged queue: %w", err)
	}

	slog.Debug("Fetched flagged queue", "count", len(items))

	fmt.Println(cli.FormatTitle("Flagged Predictions"))
	fmt.Println(cli.FormatQueueTable(items))
	return nil
}
