package cli

import (
	"fmt"
	"os"

	"github.com/songokas/hvents/internal/bootstrap"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the hvents application",
	Long:  `Starts the hvents application in the foreground.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := bootstrap.Run(getConfigPath()); err != nil {
			fmt.Fprintf(os.Stderr, "hvents: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
