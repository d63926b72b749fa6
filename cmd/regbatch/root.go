package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/joshuapare/regbatch/internal/config"
	"github.com/joshuapare/regbatch/internal/logger"
)

var (
	// Global flags
	storePath  string
	configPath string
	verbose    bool
	quiet      bool
	jsonOut    bool
	logLevel   string
	logDir     string

	// settings is the config file merged with the global flags.
	settings = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "regbatch",
	Short: "Apply and roll back registry mutation batches",
	Long: `regbatch applies ordered registry mutation batches with all-or-nothing
semantics: if any step fails, everything the batch would have created is
removed again. It registers the Drop for Symlink shell extension and runs
declarative YAML manifests against the live registry (--store system, Windows
only) or against a .reg file used as a store.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Close()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", `Registry store: a .reg file path, or "system" for the live registry`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-file-dir", "", "Write logs to a dated file in this directory")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration file, applies flag overrides and starts
// logging.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = storePath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-file-dir") {
		cfg.Log.Dir = logDir
	}
	settings = cfg
	return initLogging(flags.Changed("log-level"))
}

// initLogging enables logging when asked for by -v, --log-level or a log
// directory. Verbose mode lowers the level to debug.
func initLogging(levelSet bool) error {
	level := slog.LevelInfo
	if settings.Log.Level != "" {
		var err error
		if level, err = logger.ParseLevel(settings.Log.Level); err != nil {
			return err
		}
	}
	if verbose {
		level = slog.LevelDebug
	}
	return logger.Init(logger.Options{
		Enabled: verbose || levelSet || settings.Log.Dir != "",
		Level:   level,
		Format:  logger.Format(settings.Log.Format),
		Output:  os.Stderr,
		LogDir:  settings.Log.Dir,
	})
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
