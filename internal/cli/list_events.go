package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/songokas/hvents/internal/config"
	"github.com/songokas/hvents/internal/registry"
	"github.com/spf13/cobra"
)

var listEventsCmd = &cobra.Command{
	Use:   "list-events",
	Short: "List configured events",
	Long:  `Displays every event name in the registry, its kind, and its next_event target, if any.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath := getConfigPath()
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration from '%s': %v\n", configPath, err)
			os.Exit(1)
		}

		reg, err := registry.Load(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading event registry: %v\n", err)
			os.Exit(1)
		}

		names := reg.Names()
		if len(names) == 0 {
			fmt.Println("No events configured.")
			return
		}
		sort.Strings(names)

		fmt.Println("--- Configured Events ---")
		for _, name := range names {
			def, _ := reg.Lookup(name)
			kind, err := def.Kind()
			kindStr := string(kind)
			if err != nil {
				kindStr = fmt.Sprintf("invalid: %v", err)
			}
			fmt.Printf("- %s [%s]", name, kindStr)
			if def.NextEvent != "" {
				fmt.Printf(" -> %s", def.NextEvent)
			} else if def.NextEventTemplate != "" {
				fmt.Printf(" -> {{template}}")
			}
			fmt.Println()
		}

		startWith := reg.StartWith()
		if len(startWith) > 0 {
			fmt.Println("\n--- start_with ---")
			for _, name := range startWith {
				fmt.Printf("- %s\n", name)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(listEventsCmd)
}
