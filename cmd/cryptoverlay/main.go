// cryptoverlay: live crypto price overlay with change and premium tracking.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/seenimoa/cryptoverlay/internal/config"
	"github.com/seenimoa/cryptoverlay/internal/logging"
	"github.com/seenimoa/cryptoverlay/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger
var (
	cfg    *config.Config
	cfgSrc string
	logger *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cryptoverlay",
	Short: "Live crypto prices with daily change and KRW premium",
	Long: `cryptoverlay polls the primary market for spot prices, compares them
with the price at the daily reference hour, and computes the premium of
the secondary (KRW) market over the primary price converted at the
current USD exchange rate.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
			cfgSrc = configFile
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(candlesCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cryptoverlay %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, market mapping and the reference window",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		mapper := utils.SymbolMapper{Suffix: cfg.Sources.Secondary.Suffix, Quote: cfg.Sources.Secondary.Quote}
		window := utils.ReferenceWindowAt(time.Now(), cfg.Reference.Hour, loc)

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  cryptoverlay status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time:          %s\n", utils.FormatDateTime(time.Now().In(loc)))
		fmt.Printf("  Reference:     %s → %s\n", utils.FormatDateTime(window.Start), utils.FormatDateTime(window.End))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		if cfgSrc != "" {
			fmt.Printf("    Config File:   %s\n", cfgSrc)
		}
		fmt.Printf("    Refresh:       every %s\n", cfg.RefreshEvery())
		fmt.Printf("    Display:       %s (colors: %t)\n", cfg.Display.Mode, cfg.Display.Colors)
		fmt.Printf("    FX Source:     %s (%s)\n", cfg.Sources.FX.URL, cfg.Sources.FX.Currency)
		fmt.Printf("    Primary:       %s (%d req/s)\n", cfg.Sources.Primary.BaseURL, cfg.Sources.Primary.RateLimit)
		fmt.Printf("    Secondary:     %s\n", cfg.Sources.Secondary.BaseURL)
		fmt.Printf("    Alerts:        %t (%d rules)\n", cfg.Alerts.Enabled, len(cfg.Alerts.Rules))
		if cfg.API.Enabled {
			fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		} else {
			fmt.Println("    API Server:    disabled")
		}
		fmt.Printf("    Redis:         %t\n", cfg.Redis.Enabled)
		fmt.Printf("    Postgres:      %t\n", cfg.Postgres.Enabled)
		fmt.Println()

		fmt.Println("  Symbols:")
		for _, sym := range cfg.Symbols {
			market, ok := mapper.ToSecondary(sym)
			if !ok {
				market = "(no secondary market)"
			}
			fmt.Printf("    %-14s → %s\n", sym, market)
		}
		fmt.Println()

		fmt.Println("  Secrets:")
		for _, s := range config.CheckSecrets(cfg) {
			status := "❌ not set"
			if s.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", s.Source, s.Masked)
			}
			fmt.Printf("    %-16s %s\n", s.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return cfg.Validate()
	},
}

// --- Config Command ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultPath()
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if err := config.Save(config.Default(), path); err != nil {
			return err
		}
		fmt.Printf("✅ Wrote default configuration to %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}
