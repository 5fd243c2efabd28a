package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdrpinto/forksearch/internal/config"
	"github.com/pdrpinto/forksearch/internal/logging"
)

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	dbPath     string
	noStore    bool
}

// cfg is resolved once per invocation by PersistentPreRunE.
var cfg = config.DefaultConfig()

var rootCmd = &cobra.Command{
	Use:   "forksearch",
	Short: "Concurrent branch-and-explore maze search",
	Long: "forksearch explores a maze with one goroutine per discovered branch,\n" +
		"stops every branch as soon as one reaches the exit, and records each run.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return resolveConfig(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&rootFlags.dbPath, "db", "", "Run history DB path (default "+config.DefaultStorePath+")")
	pf.BoolVar(&rootFlags.noStore, "no-store", false, "Do not record runs")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
}

func resolveConfig(cmd *cobra.Command) error {
	cfg = config.DefaultConfig()
	if rootFlags.configPath != "" {
		loaded, err := config.Load(rootFlags.configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	override := config.Config{
		Log:   config.LogConfig{Level: rootFlags.logLevel, Format: rootFlags.logFormat},
		Store: config.StoreConfig{Path: rootFlags.dbPath, Disabled: rootFlags.noStore},
	}
	if f := cmd.Flags().Lookup("max-tasks"); f != nil && f.Changed {
		cfg.Search.MaxTasks = searchFlags.maxTasks
	}
	if f := cmd.Flags().Lookup("timeout"); f != nil && f.Changed {
		cfg.Search.Timeout = searchFlags.timeout
	}
	if f := cmd.Flags().Lookup("addr"); f != nil && f.Changed {
		override.Serve.Addr = serveFlags.addr
	}
	cfg.Merge(&override)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr())
	return nil
}
