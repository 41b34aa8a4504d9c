// Package cmd wires the rangectl CLI: install, uninstall, status,
// force-cancel, dns-check and monitor against one cluster.
package cmd

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"github.com/cyberedu/rangectl/pkg/config"
	"github.com/cyberedu/rangectl/pkg/connector"
	"github.com/cyberedu/rangectl/pkg/installer"
	"github.com/cyberedu/rangectl/pkg/logger"
)

var (
	cfgFile     string
	verboseFlag bool
	showBanner  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rangectl",
	Short: "rangectl installs and manages the cyberange platform on a Kubernetes cluster.",
	Long: `rangectl is the installation orchestrator for the cyberange training
platform. It provisions the platform database, ingress and TLS certificates
inside an existing Kubernetes cluster, driving everything through kubectl
and helm so the cluster is the single source of truth.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
		} else {
			cfg = &config.Config{}
			config.SetDefaults(cfg)
		}

		logOpts := logger.DefaultOptions()
		logOpts.FileOutput = cfg.Log.FileOutput
		logOpts.LogFilePath = cfg.Log.File
		if verboseFlag || cfg.Log.Verbose {
			logOpts.ConsoleLevel = logger.DebugLevel
		}
		logger.Init(logOpts)

		if showBanner {
			fmt.Println(figure.NewFigure("rangectl", "", true).String())
		}
		return nil
	},
}

// Execute runs the root command; called once from main.
func Execute() error {
	defer logger.SyncGlobal()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "f", "", "Path to the installer configuration file (YAML or TOML)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&showBanner, "banner", true, "Print the startup banner")
}

// newInstaller builds the orchestrator against the local machine's kubectl
// and helm.
func newInstaller() *installer.Installer {
	return installer.New(cfg, connector.NewLocalConnector(), logger.Get())
}
