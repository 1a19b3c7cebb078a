package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/the-focus-must-flow/internal/cli"
	"github.com/Veraticus/the-focus-must-flow/internal/common"
	"github.com/Veraticus/the-focus-must-flow/internal/engine"
	"github.com/Veraticus/the-focus-must-flow/internal/escalation"
	"github.com/Veraticus/the-focus-must-flow/internal/judge"
	"github.com/Veraticus/the-focus-must-flow/internal/monitor"
	"github.com/Veraticus/the-focus-must-flow/internal/normalize"
	"github.com/Veraticus/the-focus-must-flow/internal/nudge"
	"github.com/Veraticus/the-focus-must-flow/internal/sampler"
	"github.com/Veraticus/the-focus-must-flow/internal/session"
	"github.com/Veraticus/the-focus-must-flow/internal/settings"
	"github.com/Veraticus/the-focus-must-flow/internal/storage"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Monitor a focus session until interrupted",
		Long: `Start a focus session for a task and watch the desktop until Ctrl-C.

Off-task activity that persists past the grace period and persistence
threshold triggers a nudge. Ambiguous contexts are sent to the judgment
service when judge.endpoint is configured.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMonitor,
	}

	cmd.Flags().StringP("task", "t", "", "task to focus on")
	cmd.Flags().BoolP("verbose", "v", false, "print every verdict change")
	cmd.Flags().Bool("no-journal", false, "do not record sessions and nudges")
	cmd.Flags().Duration("interval", sampler.DefaultInterval, "polling interval")
	cmd.Flags().String("tone", "gentle", "nudge tone (gentle, direct, playful)")
	cmd.Flags().String("judge", "", "judgment service endpoint")

	_ = viper.BindPFlag(settings.KeySampleInterval, cmd.Flags().Lookup("interval"))
	_ = viper.BindPFlag(settings.KeyTone, cmd.Flags().Lookup("tone"))
	_ = viper.BindPFlag(settings.KeyJudgeEndpoint, cmd.Flags().Lookup("judge"))

	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) error {
	task, _ := cmd.Flags().GetString("task")
	if task == "" && len(args) > 0 {
		task = args[0]
	}
	if strings.TrimSpace(task) == "" {
		return common.NewUserError("tell me what you're working on: focus run --task \"...\"", session.ErrEmptyTask)
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	noJournal, _ := cmd.Flags().GetBool("no-journal")

	logger := slog.Default()
	store := settings.New(viper.GetViper())

	catalog := loadCatalog(store, logger)
	probes, closeProbes := buildProbes(store, logger)
	defer closeProbes()

	presenter := cli.NewConsolePresenter(cmd.OutOrStdout(), verbose)

	var journal monitor.Journal
	if !noJournal {
		js, err := storage.Open(cmd.Context(), store.JournalPath())
		if err != nil {
			logger.Warn("journal unavailable, continuing without it", "path", store.JournalPath(), "error", err)
		} else {
			defer func() { _ = js.Close() }()
			journal = js
		}
	}

	ctrl := session.New(common.Component(logger, "session"))
	eng := engine.New(common.Component(logger, "engine"))
	composer := nudge.NewGenerator()
	notifier := monitor.NewNotifier(presenter, journal, common.Component(logger, "notifier"))

	var transport escalation.Transport
	if judgeCfg := store.Judge(); judgeCfg.Endpoint != "" {
		client, err := judge.NewClient(judgeCfg)
		if err != nil {
			return fmt.Errorf("failed to create judgment client: %w", err)
		}
		transport = client
	}

	coord := escalation.New(store.Escalation(), escalation.Deps{
		Transport:   transport,
		Scorer:      eng,
		Session:     ctrl,
		Notifier:    notifier,
		Composer:    composer,
		Preferences: store.Preferences,
		Logger:      common.Component(logger, "escalation"),
	})
	if transport != nil {
		eng.SetEscalator(coord)
	}

	smp := sampler.New(probes, catalog, store.Sampler(), common.Component(logger, "sampler"))
	store.Subscribe(func() { smp.Reconfigure(store.Sampler()) })

	if viper.ConfigFileUsed() != "" {
		w, err := store.Watch(settings.DefaultDebounce, common.Component(logger, "settings"))
		if err != nil {
			logger.Warn("config changes will need a restart", "error", err)
		} else {
			defer func() { _ = w.Close() }()
		}
	}

	mon := monitor.New(monitor.Deps{
		Session:     ctrl,
		Engine:      eng,
		Coordinator: coord,
		Sampler:     smp,
		Settings:    store,
		Composer:    composer,
		Presenter:   presenter,
		Notifier:    notifier,
		Journal:     journal,
		Logger:      common.Component(logger, "monitor"),
	})

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr(), presenter.RequestStop)
	ctx, cancel := context.WithCancel(interrupts.HandleInterrupts(cmd.Context()))
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return mon.Run(gctx, task)
	})
	g.Go(func() error {
		<-gctx.Done()
		_ = smp.Close()
		return coord.Close()
	})

	if err := g.Wait(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Done. Nice work."))
	return nil
}

func loadCatalog(store *settings.Store, logger *slog.Logger) *normalize.Catalog {
	var overrides map[string]string
	if path := store.CatalogOverridesPath(); path != "" {
		loaded, err := normalize.LoadOverrides(path)
		if err != nil {
			logger.Warn("ignoring catalog overrides", "path", path, "error", err)
		}
		overrides = loaded
	}
	return normalize.NewCatalog(overrides, common.Component(logger, "catalog"))
}

func buildProbes(store *settings.Store, logger *slog.Logger) (sampler.Probes, func()) {
	cmds := store.Probes()
	probeLogger := common.Component(logger, "probe")

	probes := sampler.Probes{
		App:        execProbe("app", cmds.App, probeLogger),
		Title:      execProbe("title", cmds.Title, probeLogger),
		URL:        execProbe("url", cmds.URL, probeLogger),
		ScreenText: execProbe("screen_text", cmds.OCR, probeLogger),
	}

	closeFn := func() {}
	if cmds.CDPURL != "" {
		cdp := sampler.NewCDPTabProbe(cmds.CDPURL, sampler.DefaultProbeTimeout, probeLogger)
		probes.URL = cdp
		closeFn = func() { _ = cdp.Close() }
	}
	return probes, closeFn
}

// execProbe returns a nil interface for an empty command.
func execProbe(name, command string, logger *slog.Logger) sampler.Probe {
	p := sampler.NewExecProbe(name, command, probeTimeout(name), logger)
	if p == nil {
		return nil
	}
	return p
}

func probeTimeout(name string) time.Duration {
	if name == "screen_text" {
		return 10 * time.Second
	}
	return sampler.DefaultProbeTimeout
}
