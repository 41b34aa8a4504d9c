package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set by the build process.
var Version = "dev"
var Commit = "none"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of rangectl",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rangectl version: %s\n", Version)
		fmt.Printf("git commit: %s\n", Commit)
	},
}
