package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mangohow/mcpgate/config"
)

var version = "v0.1.0"

var configFile string

var rootCmd = cobra.Command{
	Use:           "mcpgate",
	Short:         "mcpgate exposes tools to agents over websocket and stdio",
	Long:          "mcpgate is a tool gateway, it dispatches tool calls from agents to a chat-completions upstream and keeps the backing container running",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
	config.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stdioCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
