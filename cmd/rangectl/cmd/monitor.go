package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberedu/rangectl/pkg/logger"
)

var monitorWatch bool

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVarP(&monitorWatch, "watch", "w", false, "Keep scanning on the configured interval")
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Retry challenge instances stuck in Terminating or Error",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Get()
		ins := newInstaller()
		mon, store := ins.NewInstanceMonitor()

		ctx := context.Background()
		if err := ins.SyncInstances(ctx, store); err != nil {
			return err
		}

		if !monitorWatch {
			retried := mon.ScanTerminating(ctx) + mon.ScanErrored(ctx)
			log.Infof("retried %d stuck instance(s)", retried)
			return nil
		}

		// The sync loop and the scan loop run on the same interval but stay
		// independent, so a slow cluster listing never blocks retries.
		go func() {
			ticker := time.NewTicker(mon.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := ins.SyncInstances(ctx, store); err != nil {
						log.Warnf("instance sync failed: %v", err)
					}
				}
			}
		}()
		mon.Run(ctx)
		return nil
	},
}
