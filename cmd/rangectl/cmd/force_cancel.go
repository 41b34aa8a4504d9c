package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cyberedu/rangectl/pkg/logger"
)

func init() {
	rootCmd.AddCommand(forceCancelCmd)
}

var forceCancelCmd = &cobra.Command{
	Use:   "force-cancel COMPONENT",
	Short: "Abort a wedged component and reset it to NotStarted",
	Long: `force-cancel tears down a component regardless of what state it is
in, including claims stuck on dead provisioners and debris retained from
failed migration jobs, then resets its recorded status so a fresh install
can run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Get()
		ins := newInstaller()

		res, err := ins.ForceCancel(context.Background(), args[0])
		if err != nil {
			// The reset still happened; surface the teardown problem.
			return errors.Wrapf(err, "%s was reset but teardown was incomplete", args[0])
		}
		log.Successf("%s: %s", args[0], res.Status)
		return nil
	},
}
