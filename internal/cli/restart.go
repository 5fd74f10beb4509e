package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the hvents daemon",
	Long:  `Stops the running hvents process and then starts it again.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Restarting hvents...")

		fmt.Println("\n--- Stopping ---")
		stopCmd.Run(cmd, nil) // Call stopCmd's Run directly

		fmt.Println("\n--- Starting ---")
		startCmd.Run(cmd, nil) // Call startCmd's Run directly
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)
}
