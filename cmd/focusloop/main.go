// focusloop: personal task and idea tracker with AI planning, exposed as
// an MCP server.
//
// Usage:
//
//	focusloop serve     # Start the MCP server (stdio transport)
//	focusloop report    # Print a progress report to the terminal
//	focusloop version   # Print the version
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
