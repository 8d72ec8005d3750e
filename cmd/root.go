// Package cmd holds the CLI commands of the proxy binary.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "xano-mcp",
	Short: "MCP proxy for Xano-defined tools",
	Long: `xano-mcp serves a Model Context Protocol endpoint whose tool
catalog lives in a Xano backend. Clients connect with a share token, an
OAuth access token or a raw Xano credential; the proxy resolves the real
credential, loads the tool list and forwards executions.`,
	SilenceUsage: true,
}

// SetVersion injects the build version into the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the CLI.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "xano-mcp version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
