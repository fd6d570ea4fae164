// Package cli implements the careclaw command line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/CareClaw/CareClaw/internal/cli.version=1.2.3"
	version = "1.0.0"
	logo    = "\n" +
		"   ____                ____ _\n" +
		"  / ___|__ _ _ __ ___ / ___| | __ ___      __\n" +
		" | |   / _` | '__/ _ \\ |   | |/ _` \\ \\ /\\ / /\n" +
		" | |__| (_| | | |  __/ |___| | (_| |\\ V  V /\n" +
		"  \\____\\__,_|_|  \\___|\\____|_|\\__,_| \\_/\\_/\n"
)

var rootCmd = &cobra.Command{
	Use:   "careclaw",
	Short: "CareClaw - Health Companion Agent",
	Long:  color.CyanString(logo) + "\nA streaming health companion agent with knowledge retrieval and emergency alerting.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(knowledgeCmd)
}
