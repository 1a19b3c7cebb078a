package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-focus-must-flow/internal/cli"
	"github.com/Veraticus/the-focus-must-flow/internal/normalize"
	"github.com/Veraticus/the-focus-must-flow/internal/settings"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize <url>",
		Short: "Show how a URL and window title are normalized and categorized",
		Args:  cobra.ExactArgs(1),
		RunE:  runCategorize,
	}

	cmd.Flags().String("app", "", "foreground application name")
	cmd.Flags().String("bundle", "", "foreground application bundle id")
	cmd.Flags().String("title", "", "raw window title")

	return cmd
}

func runCategorize(cmd *cobra.Command, args []string) error {
	app, _ := cmd.Flags().GetString("app")
	bundle, _ := cmd.Flags().GetString("bundle")
	title, _ := cmd.Flags().GetString("title")

	store := settings.New(viper.GetViper())
	catalog := loadCatalog(store, slog.Default())

	lines := []string{cli.FormatTitle("Categorize")}

	parsed := normalize.NormalizeURL(args[0])
	if parsed == nil {
		lines = append(lines, cli.FormatWarning("no usable URL in "+fmt.Sprintf("%q", args[0])))
	} else {
		lines = append(lines,
			cli.FormatField("url", parsed.Canonical),
			cli.FormatField("host", parsed.Host),
			cli.FormatField("path", parsed.Path),
			cli.FormatField("short", parsed.ShortPath),
			cli.FormatField("display", parsed.Display),
			cli.FormatField("category", string(catalog.Categorize(parsed.Host, parsed.Path))),
			cli.FormatField("video", fmt.Sprint(normalize.IsVideoHost(parsed.Host))),
		)
	}

	if title != "" || app != "" {
		lines = append(lines,
			cli.FormatField("app", app),
			cli.FormatField("browser", fmt.Sprint(normalize.IsBrowser(app, bundle))),
			cli.FormatField("title", normalize.NormalizeTitle(app, bundle, title)),
		)
	}

	_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
	return err
}
