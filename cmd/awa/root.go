package main

import "github.com/spf13/cobra"

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0" ./cmd/awa/
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "awa",
	Short: "Token-based engine for agentic workflows",
	Long: "AWA executes workflow graphs where humans, AI agents, robots and\n" +
		"applications each own activities. Tokens move through the graph,\n" +
		"decision tables route them, and shared contexts carry the data.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}
