package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/logger"
)

var uninstallComponents []string

func init() {
	rootCmd.AddCommand(uninstallCmd)
	uninstallCmd.Flags().StringSliceVar(&uninstallComponents, "component", nil,
		"Components to remove; defaults to all, in reverse install order")
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove platform components from the cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Get()
		components := uninstallComponents
		if len(components) == 0 {
			components = []string{common.ComponentCertManager, common.ComponentIngress, common.ComponentDatabase}
		}

		ins := newInstaller()
		for _, component := range components {
			res, err := ins.Uninstall(context.Background(), component)
			if err != nil {
				return err
			}
			log.Successf("%s: %s", component, res.Status)
		}
		return nil
	},
}
