package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the warden application
var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "HTTP gateway exposing mailbox tools to AI assistants",
	Long: `warden is a protocol gateway that exposes a fixed catalog of Gmail
tools (listing, inspecting, trashing, labeling and rule-based filtering
of messages) over a single HTTP dispatch endpoint, with per-session
interaction history for the calling assistant.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "warden version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
