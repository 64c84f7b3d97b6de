package main

import (
	"context"
	"fmt"

	"github.com/hsdd/triage/internal/cli"
	"github.com/hsdd/triage/internal/config"
	"github.com/hsdd/triage/internal/journal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show resolutions recorded in the local journal",
		Long: `List the review resolutions this machine has recorded, newest first.

The journal is local only; the portal keeps its own audit trail.`,
		RunE: runHistory,
	}

	// Flags
	cmd.Flags().String("session", "", "Only show one session's resolutions")
	cmd.Flags().Int("limit", 50, "Maximum entries to show (0 = all)")

	// Bind to viper
	_ = viper.BindPFlag("history.session", cmd.Flags().Lookup("session"))
	_ = viper.BindPFlag("history.limit", cmd.Flags().Lookup("limit"))

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	j, err := openJournal(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = j.Close()
	}()

	entries, err := j.List(ctx, viper.GetString("history.session"), viper.GetInt("history.limit"))
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println(cli.FormatInfo("No recorded resolutions yet."))
		return nil
	}

	fmt.Println(cli.FormatTitle("Recorded Resolutions"))
	for _, entry := range entries {
		label := entry.PredictedLabel
		if entry.CorrectedLabel != "" {
			label = fmt.Sprintf("%s → %s", entry.PredictedLabel, entry.CorrectedLabel)
		}
		fmt.Printf("%s  %-14s  %-10s  %s\n",
			entry.ResolvedAt.Local().Format("2006-01-02 15:04"),
			entry.Status, entry.SubjectRef, label)
	}
	return nil
}

func openJournal(ctx context.Context) (*journal.Journal, error) {
	path := viper.GetString("journal.path")
	if path == "" {
		path = config.DefaultJournalPath()
	} else {
		path = config.ExpandPath(path)
	}

	j, err := journal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := j.Migrate(ctx); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return j, nil
}
