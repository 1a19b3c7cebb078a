package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-focus-must-flow/internal/cli"
	"github.com/Veraticus/the-focus-must-flow/internal/common"
	"github.com/Veraticus/the-focus-must-flow/internal/settings"
	"github.com/Veraticus/the-focus-must-flow/internal/storage"
)

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List recent nudges",
		RunE:  runJournal,
	}

	cmd.Flags().IntP("limit", "n", storage.DefaultListLimit, "number of nudges to show")

	return cmd
}

func runJournal(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	store := settings.New(viper.GetViper())

	js, err := storage.Open(cmd.Context(), store.JournalPath())
	if err != nil {
		return common.NewUserError("could not open the journal at "+store.JournalPath(), err)
	}
	defer func() { _ = js.Close() }()

	entries, err := js.ListInterventions(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list interventions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, cli.FormatInfo("No nudges yet."))
		return nil
	}

	_, _ = fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("Last %d nudges", len(entries))))
	for _, e := range entries {
		where := e.Host
		if where == "" {
			where = e.AppName
		}
		_, _ = fmt.Fprintf(out, "%s  %-8s  %s  %s\n    %s\n",
			cli.SubtleStyle.Render(e.At.Local().Format("2006-01-02 15:04")),
			e.Source,
			cli.BoldStyle.Render(e.Task),
			cli.SubtleStyle.Render(where),
			e.Message)
	}
	return nil
}
