package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-focus-must-flow/internal/common"
	"github.com/Veraticus/the-focus-must-flow/internal/config"
	"github.com/Veraticus/the-focus-must-flow/internal/settings"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "focus",
		Short: "🎯 Stay on the task you said you'd do",
		Long: `the-focus-must-flow watches the foreground app, window title and browser tab,
decides whether they match the task you declared, and nudges you when you drift.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/focus/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	_ = viper.BindPFlag(settings.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag(settings.KeyLogFormat, rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(categorizeCmd())
	rootCmd.AddCommand(journalCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, common.UserMessage(err))
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	// .env supplies secrets such as FOCUS_JUDGE_API_KEY; a missing file is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := config.Dir()
		if err != nil {
			return fmt.Errorf("failed to get config directory: %w", err)
		}
		viper.AddConfigPath(dir)
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FOCUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	settings.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := setupLogging(); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	if used := viper.ConfigFileUsed(); used != "" {
		slog.Debug("loaded config", "path", filepath.Clean(used))
	}
	return nil
}

func setupLogging() error {
	level, err := common.ParseLevel(viper.GetString(settings.KeyLogLevel))
	if err != nil {
		return err
	}

	format := viper.GetString(settings.KeyLogFormat)
	if format != "console" && format != "json" {
		return fmt.Errorf("%w: log format %q", common.ErrInvalidConfig, format)
	}

	common.SetupLogger(level, format)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			slog.Info("focus version", "version", version)
		},
	}
}
