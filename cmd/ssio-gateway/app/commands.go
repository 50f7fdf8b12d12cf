// Package app provides the entry point for the ssio-gateway command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zineddine-nrk/SSIO-Project-Gateway/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "ssio-gateway",
	DisableAutoGenTag: true,
	Short:             "Identity and device-credential gateway for FIWARE deployments",
	Long: `ssio-gateway bridges local sessions to an upstream Keyrock identity
provider and manages the full lifecycle of IoT device credentials. Users log
in once and receive a local token; the upstream management credential stays
server-side and is never exposed to clients.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates the root command for the gateway CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)

	return rootCmd
}
