package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Use StringArray to capture multiple --data flags
	dataFlags []string
	textFlag  string
	adminAddr string
)

// triggerCmd represents the trigger command
var triggerCmd = &cobra.Command{
	Use:   "trigger <event_name>",
	Short: "Manually trigger a configured event",
	Long: `Sends a request to the running hvents process to enqueue the named event,
exactly as if it had been reached via next_event. A literal payload can be
supplied with --text, or as structured key=value pairs via one or more --data
flags.
Example: hvents trigger porch_light_on --data mode=away --data brightness=20`,
	Args: cobra.ExactArgs(1), // Requires exactly one argument: the event name
	Run: func(cmd *cobra.Command, args []string) {
		eventName := args[0]
		fmt.Printf("Triggering event '%s'...\n", eventName)

		requestBody := map[string]interface{}{"event_name": eventName}

		if textFlag != "" {
			requestBody["text"] = textFlag
		} else if len(dataFlags) > 0 {
			data := make(map[string]interface{})
			for _, p := range dataFlags {
				parts := strings.SplitN(p, "=", 2)
				if len(parts) != 2 || parts[0] == "" {
					fmt.Fprintf(os.Stderr, "Error: Invalid --data entry '%s'. Use key=value.\n", p)
					os.Exit(1)
				}
				data[parts[0]] = parts[1]
			}
			requestBody["data"] = data
		}

		jsonData, err := json.Marshal(requestBody)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding request body: %v\n", err)
			os.Exit(1)
		}

		triggerURL := fmt.Sprintf("http://%s/hvents/trigger", adminAddr)
		resp, err := http.Post(triggerURL, "application/json", bytes.NewBuffer(jsonData))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error sending trigger request to %s: %v\n", triggerURL, err)
			fmt.Fprintln(os.Stderr, "Is hvents running?")
			os.Exit(1)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusAccepted {
			fmt.Println("Trigger request accepted. Event enqueued.")
			return
		}

		limitReader := http.MaxBytesReader(nil, resp.Body, 1024)
		bodyBytes, errRead := io.ReadAll(limitReader)

		fmt.Fprintf(os.Stderr, "Error: hvents returned status %s\n", resp.Status)
		if errRead == nil && len(bodyBytes) > 0 {
			fmt.Fprintf(os.Stderr, "Response: %s\n", string(bodyBytes))
		} else if errRead != nil {
			fmt.Fprintf(os.Stderr, "(Could not read response body: %v)\n", errRead)
		}
		os.Exit(1)
	},
}

func init() {
	triggerCmd.Flags().StringArrayVar(&dataFlags, "data", []string{}, "structured payload entry in key=value format (can be repeated)")
	triggerCmd.Flags().StringVar(&textFlag, "text", "", "literal text payload; takes precedence over --data")
	triggerCmd.Flags().StringVar(&adminAddr, "admin-addr", "localhost:8080", "host:port hvents' admin server is listening on")
	rootCmd.AddCommand(triggerCmd)
}
