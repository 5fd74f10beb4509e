package cli

import (
	"github.com/spf13/cobra"
)

var (
	// cfgFile will hold the path to the config file, bound to the persistent flag
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hvents",
	Short: "hvents is a declarative home-automation event engine",
	Long: `hvents dispatches chains of events (MQTT messages, HTTP calls,
file changes, scan codes, timers) against a YAML-defined registry.

Run 'hvents help <command>' for more information on a specific command.
If no command is specified, hvents attempts to run in foreground mode.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Define the persistent --config flag on the root command
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "Path to the configuration file")
	// With no subcommand, run the same foreground engine as 'hvents start'
	rootCmd.Run = startCmd.Run
}

// Helper function to get the config file path (used by commands)
func getConfigPath() string {
	// Cobra automatically parses the flag into the cfgFile variable
	return cfgFile
}
