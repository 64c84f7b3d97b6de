package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hsdd/triage/internal/cli"
	"github.com/hsdd/triage/internal/gateway"
	"github.com/hsdd/triage/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review flagged predictions interactively",
		Long: `Start an interactive review session over the portal's flagged queue.

Each flagged prediction is shown with its existing annotations. Mark it
reviewed to drop it from the queue, keep it pending to leave it flagged,
or attach an annotation without changing its status.

Examples:
  triage review                       # Review with the configured portal
  triage review --timeout 10s        # Tighter per-request timeout
  triage review --no-journal         # Skip the local resolution journal`,
		RunE: runReview,
	}

	// Flags
	cmd.Flags().Duration("timeout", 30*time.Second, "Per-request portal timeout")
	cmd.Flags().Bool("no-journal", false, "Do not record resolutions locally")

	// Bind to viper
	_ = viper.BindPFlag("portal.timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("review.no_journal", cmd.Flags().Lookup("no-journal"))

	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := newGatewayClient()
	if err != nil {
		return err
	}

	controller := session.NewWithConfig(client, session.Config{
		Timeout: viper.GetDuration("portal.timeout"),
	})

	var recorder cli.Recorder
	if !viper.GetBool("review.no_journal") {
		j, journalErr := openJournal(ctx)
		if journalErr != nil {
			return journalErr
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("Failed to close journal", "error", closeErr)
			}
		}()
		recorder = j
	}

	sessionID := uuid.NewString()
	slog.Info("Starting review session", "session_id", sessionID)

	reviewer := cli.NewReviewer(controller, recorder, sessionID, nil, nil)
	return reviewer.Run(ctx)
}

func newGatewayClient() (*gateway.Client, error) {
	url := viper.GetString("portal.url")
	token := viper.GetString("portal.token")

	client, err := gateway.NewClient(url, token)
	if err != nil {
		return nil, fmt.Errorf("portal configuration: %w", err)
	}
	return client, nil
}
