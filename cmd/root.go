package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/cache"
	cfgpkg "github.com/KaramelBytes/dataloom-cli/internal/config"
	"github.com/KaramelBytes/dataloom-cli/internal/ingest"
	"github.com/KaramelBytes/dataloom-cli/internal/logging"
	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
)

var (
	// Global flags
	cfgFile   string
	debug     bool
	logLevel  string
	logFormat string
	noCache   bool

	// Loaded configuration
	cfg *cfgpkg.Global

	// Replaced by setup once the log level is known
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "dataloom",
	Short: "DataLoom CLI: detect the shape of tabular data and clean it up",
	Long: `DataLoom reads CSV/TSV, spreadsheets, HTML tables and mailbox exports, infers column types,
classifies the dataset as time series, panel, cross-sectional or email data, organizes it
accordingly, plans missing-value imputation and scores overall data quality.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.dataloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console|json (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "do not read or write the verdict cache")
}

// setup loads configuration and builds the logger before any subcommand runs.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c

	level, format := cfg.LogLevel, cfg.LogFormat
	if logLevel != "" {
		level = logLevel
	}
	if debug {
		level = "debug"
	}
	if logFormat != "" {
		format = logFormat
	}
	l, err := logging.New(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func ingestOptions(sheet string) ingest.Options {
	return ingest.Options{
		Timeout:  time.Duration(cfg.IngestTimeoutSec) * time.Second,
		MaxBytes: cfg.MaxInputBytes,
		Sheet:    sheet,
	}
}

// openSession returns a session backed by the on-disk verdict cache. A
// broken cache file is reported and replaced.
func openSession(cmd *cobra.Command) *pipeline.Session {
	if noCache {
		return pipeline.NewSession(nil)
	}
	store, err := cache.Open(cache.Path(cfg.CacheDir))
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %v (starting with an empty cache)\n", err)
	}
	return pipeline.NewSession(store)
}
