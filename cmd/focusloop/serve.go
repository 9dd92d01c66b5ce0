package main

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/focusloop/focusloop/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s, cleanup, err := server.New(cfg, newLogger(cfg))
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			return mcpserver.ServeStdio(s)
		},
	}
}
