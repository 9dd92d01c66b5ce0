package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/focusloop/focusloop/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "focusloop",
	Short: "Personal task and idea tracker with AI planning",
	Long: `focusloop tracks ideas, tasks and notes, plans a daily focus
worklist from them, and reports on your progress. It runs as an MCP
server over stdio so any MCP-capable AI tool can drive it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default: "+config.DefaultPath()+")")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// loadConfig reads the configuration honoring the --config flag.
func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// newLogger builds the process logger. Everything logs to stderr because
// stdout belongs to the MCP stdio transport.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
