package cmd

import (
	"context"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cyberedu/rangectl/pkg/common"
	"github.com/cyberedu/rangectl/pkg/logger"
)

var installComponents []string

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().StringSliceVar(&installComponents, "component", nil,
		"Components to install (database, ingress, certmanager); defaults to all, in order")
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the platform components into the cluster",
	Long: `Install provisions the selected components. Every component is an
idempotent pipeline: re-running install skips what is already in place and
resumes what failed half-way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Get()
		components := installComponents
		if len(components) == 0 {
			components = []string{common.ComponentDatabase, common.ComponentIngress, common.ComponentCertManager}
		}

		ins := newInstaller()
		for _, component := range components {
			log.Infof("installing %s", component)
			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetDescription(component),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
			stop := make(chan struct{})
			go func() {
				for {
					select {
					case <-stop:
						return
					case <-time.After(150 * time.Millisecond):
						_ = bar.Add(1)
					}
				}
			}()

			res, err := ins.Install(context.Background(), component)
			close(stop)
			_ = bar.Finish()
			if err != nil {
				return err
			}
			log.Successf("%s: %s", component, res.Status)
		}
		return nil
	},
}
