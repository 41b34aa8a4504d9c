package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded and live status of every component",
	RunE: func(cmd *cobra.Command, args []string) error {
		ins := newInstaller()
		report := ins.CheckStatus(context.Background())

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"COMPONENT", "STATUS", "LIVE", "LAST ERROR"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)

		for _, c := range report.Components {
			live := c.Live
			if live == "" {
				live = "-"
			}
			lastErr := c.Step.LastError
			if lastErr == "" {
				lastErr = "-"
			}
			table.Append([]string{c.Component, string(c.Step.Status), live, lastErr})
		}
		table.Render()

		if len(report.CompletedSteps) > 0 {
			cmd.Printf("\nCompleted steps: %s\n", strings.Join(report.CompletedSteps, ", "))
		}
		return nil
	},
}
