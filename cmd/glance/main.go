// glance: narration service for smart glasses.
// Greets the wearer, narrates nearby places when things go quiet, and
// explains whatever the camera sees when the button is pressed.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "glance",
	Short: "Smart-glasses narration service",
	Long: `glance accepts websocket connections from smart glasses and runs a
narration session for each wearer:

  • a welcome greeting and a short description of the current city
  • nearby-place suggestions after 30 seconds of silence
  • photo capture, GPS tagging and spoken explanations on button press

The companion UI is served over HTTP with live photo and transcription streams.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "glance.yaml", "Path to YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
