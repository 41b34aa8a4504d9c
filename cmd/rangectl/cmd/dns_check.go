package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberedu/rangectl/pkg/connector"
	"github.com/cyberedu/rangectl/pkg/dnscheck"
	"github.com/cyberedu/rangectl/pkg/logger"
	"github.com/cyberedu/rangectl/pkg/runner"
)

var dnsWatch bool

func init() {
	rootCmd.AddCommand(dnsCheckCmd)
	dnsCheckCmd.Flags().BoolVarP(&dnsWatch, "watch", "w", false, "Keep checking until propagation completes")
}

var dnsCheckCmd = &cobra.Command{
	Use:   "dns-check",
	Short: "Check whether the platform domain has propagated to the ingress address",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.Get()
		m := dnscheck.NewMonitor(runner.NewDefaultRunner(), connector.NewLocalConnector(), log, cfg.Domain, cfg.IngressIP)
		m.Interval = 15 * time.Second

		if dnsWatch {
			m.RunLoop(context.Background(), func(status dnscheck.Status, res dnscheck.Result) {
				log.Infof("dns check: %s (root: %s, wildcard: %s)", status,
					strings.Join(res.RootIPs, " "), strings.Join(res.WildcardIPs, " "))
			})
			return nil
		}

		res, err := m.Check(context.Background())
		status := m.Classify(res, err)
		if err != nil {
			return err
		}
		log.Infof("dns status: %s", status)
		log.Infof("root %s -> %s", cfg.Domain, strings.Join(res.RootIPs, " "))
		log.Infof("wildcard *.%s -> %s", cfg.Domain, strings.Join(res.WildcardIPs, " "))
		return nil
	},
}
